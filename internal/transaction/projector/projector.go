package projector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	json "github.com/goccy/go-json"
	"github.com/smallbiznis/payledger/internal/clock"
	"github.com/smallbiznis/payledger/internal/config"
	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
	"github.com/smallbiznis/payledger/internal/lock"
	obscontext "github.com/smallbiznis/payledger/internal/observability/context"
	obsmetrics "github.com/smallbiznis/payledger/internal/observability/metrics"
	"github.com/smallbiznis/payledger/internal/transaction/domain"
	"github.com/smallbiznis/payledger/internal/transaction/state"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultLockTTL = 10 * time.Second

// DigestReader recomputes the digest of one resource.
type DigestReader interface {
	Digest(ctx context.Context, resourceExternalID string) (eventdomain.EventDigest, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Digests  DigestReader
	Resolver *state.Resolver
	Locker   lock.Locker
	Metrics  *obsmetrics.Metrics `optional:"true"`
	Config   config.Config       `optional:"true"`
}

type Projector struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	digests  DigestReader
	resolver *state.Resolver
	locker   lock.Locker
	metrics  *obsmetrics.Metrics
	lockTTL  time.Duration
}

func New(p Params) *Projector {
	ttl := p.Config.Queue.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Projector{
		db:       p.DB,
		log:      p.Log.Named("transaction.projector"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		digests:  p.Digests,
		resolver: p.Resolver,
		locker:   p.Locker,
		metrics:  p.Metrics,
		lockTTL:  ttl,
	}
}

// Project derives the full transaction row from a digest.
func (p *Projector) Project(digest eventdomain.EventDigest) (domain.Transaction, error) {
	if digest.ResourceExternalID == "" {
		return domain.Transaction{}, fmt.Errorf("%w: digest without resource", eventdomain.ErrInvalidEvent)
	}

	payload := fields(digest.MergedPayload)
	details, err := json.Marshal(payload.details())
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("encode transaction details: %w", err)
	}

	txn := domain.Transaction{
		ExternalID:         digest.ResourceExternalID,
		ParentExternalID:   digest.ParentResourceExternalID,
		GatewayAccountID:   payload.str("gateway_account_id"),
		TransactionType:    string(digest.ResourceType),
		State:              p.resolver.StateFor(digest.MostRecentSalientEventType),
		Amount:             payload.int64("amount"),
		Reference:          payload.str("reference"),
		Description:        payload.str("description"),
		Email:              payload.str("email"),
		CardholderName:     payload.str("cardholder_name"),
		CreatedDate:        digest.EventCreatedDate.UTC(),
		TransactionDetails: datatypes.JSON(details),
		EventCount:         digest.EventCount,
	}
	return txn, nil
}

// Refresh recomputes and stores the transaction for a resource while holding
// its projection lock, then returns the stored row. written is false when the
// stored row already covers as many events.
func (p *Projector) Refresh(ctx context.Context, externalID string) (domain.Transaction, bool, error) {
	ctx = obscontext.WithResource(ctx, externalID)

	release, err := p.locker.Acquire(ctx, lockKey(externalID), p.lockTTL)
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("%w: acquire projection lock: %w", eventdomain.ErrStoreUnavailable, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			p.log.Warn("release projection lock", zap.String("resource_external_id", externalID), zap.Error(err))
		}
	}()

	digest, err := p.digests.Digest(ctx, externalID)
	if err != nil {
		return domain.Transaction{}, false, err
	}

	txn, err := p.Project(digest)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	txn.ID = p.genID.Generate()
	txn.UpdatedAt = p.clock.Now().UTC()

	written, err := p.repo.Upsert(ctx, p.db, &txn)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.Transaction{}, false, err
		}
		return domain.Transaction{}, false, fmt.Errorf("%w: upsert transaction: %w", eventdomain.ErrStoreUnavailable, err)
	}

	p.metrics.RecordProjection(ctx, txn.TransactionType, string(txn.State), !written)
	if !written {
		p.log.Debug("projection unchanged",
			zap.String("resource_external_id", externalID),
			zap.Int("event_count", txn.EventCount),
		)
	}

	stored, err := p.repo.FindByExternalID(ctx, p.db, externalID)
	if err != nil {
		return domain.Transaction{}, written, fmt.Errorf("%w: reload transaction: %w", eventdomain.ErrStoreUnavailable, err)
	}
	if stored == nil {
		return txn, written, nil
	}
	return *stored, written, nil
}

func lockKey(externalID string) string {
	return "ledger:projection:" + externalID
}
