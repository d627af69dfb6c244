package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConsumerConfig tunes the queue consumer loop.
type ConsumerConfig struct {
	BatchSize      int           `mapstructure:"batchSize"`
	Workers        int           `mapstructure:"workers"`
	WaitTime       time.Duration `mapstructure:"waitTime"`
	MessageTimeout time.Duration `mapstructure:"messageTimeout"`
	MaxBackoff     time.Duration `mapstructure:"maxBackoff"`
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		BatchSize:      10,
		Workers:        4,
		WaitTime:       5 * time.Second,
		MessageTimeout: 30 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

type ConsumerConfigHolder struct {
	current atomic.Value // holds ConsumerConfig
}

// NewStaticConsumerConfigHolder returns a holder that never reloads.
func NewStaticConsumerConfigHolder(cfg ConsumerConfig) *ConsumerConfigHolder {
	holder := &ConsumerConfigHolder{}
	holder.current.Store(cfg.withDefaults())
	return holder
}

func NewConsumerConfigHolder() (*ConsumerConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("ledger")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/payledger/config")
	v.AddConfigPath("/etc/payledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConsumerConfig()
	v.SetDefault("consumer.batchSize", defaults.BatchSize)
	v.SetDefault("consumer.workers", defaults.Workers)
	v.SetDefault("consumer.waitTime", defaults.WaitTime)
	v.SetDefault("consumer.messageTimeout", defaults.MessageTimeout)
	v.SetDefault("consumer.maxBackoff", defaults.MaxBackoff)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg ConsumerConfig
	if err := v.UnmarshalKey("consumer", &cfg); err != nil {
		return nil, err
	}
	if err := validateConsumerConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ConsumerConfigHolder{}
	holder.current.Store(cfg.withDefaults())

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ConsumerConfig
			if err := v.UnmarshalKey("consumer", &updated); err != nil {
				log.Printf("[consumer-config] reload failed: %v", err)
				return
			}
			if err := validateConsumerConfig(updated); err != nil {
				log.Printf("[consumer-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated.withDefaults())
			log.Printf("[consumer-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *ConsumerConfigHolder) Get() ConsumerConfig {
	return h.current.Load().(ConsumerConfig)
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	defaults := DefaultConsumerConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.WaitTime <= 0 {
		c.WaitTime = defaults.WaitTime
	}
	if c.MessageTimeout <= 0 {
		c.MessageTimeout = defaults.MessageTimeout
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	return c
}

func validateConsumerConfig(cfg ConsumerConfig) error {
	if cfg.BatchSize < 0 || cfg.BatchSize > 1000 {
		return errors.New("consumer.batchSize must be between 1 and 1000")
	}
	if cfg.Workers < 0 || cfg.Workers > 256 {
		return errors.New("consumer.workers must be between 1 and 256")
	}
	return nil
}
