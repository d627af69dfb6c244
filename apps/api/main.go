package main

import (
	"github.com/smallbiznis/payledger/internal/clock"
	"github.com/smallbiznis/payledger/internal/config"
	"github.com/smallbiznis/payledger/internal/observability"
	"github.com/smallbiznis/payledger/internal/ratelimit"
	"github.com/smallbiznis/payledger/internal/redisconn"
	"github.com/smallbiznis/payledger/internal/server"
	"github.com/smallbiznis/payledger/internal/transaction/repository"
	"github.com/smallbiznis/payledger/internal/transaction/service"
	"github.com/smallbiznis/payledger/pkg/db"
	"go.uber.org/fx"
)

// The api binary serves search only; projections are written by the
// consumer binary.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		redisconn.Module,

		fx.Provide(repository.Provide),
		fx.Provide(service.New),
		ratelimit.Module,
		server.Module,
	)
	app.Run()
}
