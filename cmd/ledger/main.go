package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payledger/internal/clock"
	"github.com/smallbiznis/payledger/internal/config"
	"github.com/smallbiznis/payledger/internal/event"
	"github.com/smallbiznis/payledger/internal/ingest"
	"github.com/smallbiznis/payledger/internal/lock"
	"github.com/smallbiznis/payledger/internal/migration"
	"github.com/smallbiznis/payledger/internal/observability"
	"github.com/smallbiznis/payledger/internal/queue/consumer"
	"github.com/smallbiznis/payledger/internal/ratelimit"
	"github.com/smallbiznis/payledger/internal/redisconn"
	"github.com/smallbiznis/payledger/internal/server"
	"github.com/smallbiznis/payledger/internal/transaction"
	"github.com/smallbiznis/payledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redisconn.Module,
		lock.Module,
		migration.Module,

		// Functional Domains
		event.Module,
		transaction.Module,
		ingest.Module,
		consumer.Module,
		ratelimit.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
