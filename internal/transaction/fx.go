package transaction

import (
	"github.com/smallbiznis/payledger/internal/event/digest"
	"github.com/smallbiznis/payledger/internal/transaction/projector"
	"github.com/smallbiznis/payledger/internal/transaction/repository"
	"github.com/smallbiznis/payledger/internal/transaction/service"
	"github.com/smallbiznis/payledger/internal/transaction/state"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction",
	fx.Provide(state.Default),
	fx.Provide(func(r *state.Resolver) digest.Salience { return r }),
	fx.Provide(func(b *digest.Builder) projector.DigestReader { return b }),
	fx.Provide(repository.Provide),
	fx.Provide(projector.New),
	fx.Provide(service.New),
)
