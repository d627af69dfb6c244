package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payledger/internal/config"
	"github.com/smallbiznis/payledger/internal/queue"
	"github.com/smallbiznis/payledger/internal/queue/redisstream"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// publisher replays newline-delimited envelopes into the ledger stream.
func main() {
	flags := pflag.NewFlagSet("publisher", pflag.ExitOnError)
	file := flags.StringP("file", "f", "-", "newline-delimited envelopes, - for stdin")
	stream := flags.String("stream", "", "stream name, defaults to LEDGER_QUEUE_STREAM")
	_ = flags.Parse(os.Args[1:])

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := config.Load()
	if *stream != "" {
		cfg.Queue.Stream = *stream
	}
	if !cfg.Redis.Enabled() {
		log.Fatal("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	publisher, err := redisstream.New(ctx, client, redisstream.Config{
		Stream: cfg.Queue.Stream,
		Group:  cfg.Queue.Group,
	}, log)
	if err != nil {
		log.Fatal("open stream", zap.Error(err))
	}

	var in io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal("open input", zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	published, skipped := 0, 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if _, err := queue.Decode(queue.Message{Body: line}); err != nil {
			skipped++
			log.Warn("skipping envelope", zap.Error(err), zap.ByteString("body", line))
			continue
		}
		id, err := publisher.Publish(ctx, line)
		if err != nil {
			log.Fatal("publish", zap.Error(err))
		}
		published++
		log.Debug("published", zap.String("message_id", id))
	}
	if err := scanner.Err(); err != nil {
		log.Fatal("read input", zap.Error(err))
	}

	log.Info("done",
		zap.String("stream", cfg.Queue.Stream),
		zap.Int("published", published),
		zap.Int("skipped", skipped),
	)
}
