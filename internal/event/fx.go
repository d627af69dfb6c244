package event

import (
	"github.com/smallbiznis/payledger/internal/event/digest"
	"github.com/smallbiznis/payledger/internal/event/repository"
	"github.com/smallbiznis/payledger/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event.store",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(digest.NewBuilder),
)
