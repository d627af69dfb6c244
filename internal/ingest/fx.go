package ingest

import (
	"github.com/smallbiznis/payledger/internal/queue"
	"github.com/smallbiznis/payledger/internal/transaction/projector"
	"go.uber.org/fx"
)

var Module = fx.Module("ingest",
	fx.Provide(func(p *projector.Projector) Refresher { return p }),
	fx.Provide(New),
	fx.Provide(func(p *Pipeline) queue.Handler { return p }),
)
