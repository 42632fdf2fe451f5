// Package lifecycle implements the Lifecycle Controller (C6): the state
// machine that owns every Order transition. All mutation of an order goes
// through the per-order critical section internal/lock provides;
// concurrent operations on distinct orders proceed independently.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/goex/swaprelayer/internal/bus"
	"github.com/goex/swaprelayer/internal/gateway"
	"github.com/goex/swaprelayer/internal/lock"
	"github.com/goex/swaprelayer/internal/oracle"
	"github.com/goex/swaprelayer/internal/signing"
	"github.com/goex/swaprelayer/internal/store"
)

// EscrowFactory maps a source chain-id to the escrow factory address admit
// checks the maker's allowance against — the same resolver the signature
// verifier uses for EIP-712's verifyingContract.
type EscrowFactory func(srcChain uint64) (string, error)

// Controller wires the five collaborating components (C1-C5, C7's events)
// into the nine operations spec.md §4.6 names. It holds no order state of
// its own; Store is always authoritative.
type Controller struct {
	store   store.Store
	gateway gateway.Gateway
	bus     bus.Bus
	verify  *signing.Verifier
	oracle  oracle.Oracle
	locker  lock.Locker
	logger  *slog.Logger

	escrowFactory EscrowFactory
	cfg           Config

	// settlementCtx supervises every goroutine notifySettlement spawns, so
	// they can all be cancelled together on shutdown.
	settlementCtx context.Context
	cancelAll     context.CancelFunc
}

func NewController(
	st store.Store,
	gw gateway.Gateway,
	b bus.Bus,
	verifier *signing.Verifier,
	priceOracle oracle.Oracle,
	locker lock.Locker,
	escrowFactory EscrowFactory,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:         st,
		gateway:       gw,
		bus:           b,
		verify:        verifier,
		oracle:        priceOracle,
		locker:        locker,
		escrowFactory: escrowFactory,
		cfg:           cfg,
		logger:        logger,
		settlementCtx: ctx,
		cancelAll:     cancel,
	}
}

// Close cancels every supervisor task notifySettlement has spawned.
// Already-committed store writes are unaffected.
func (c *Controller) Close() {
	c.cancelAll()
}

// withOrderLock runs fn holding key's per-order critical section.
func (c *Controller) withOrderLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := c.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("acquire order lock: %w", err)
	}
	defer unlock()
	return fn()
}

func orderKey(id [32]byte) string {
	return fmt.Sprintf("order:%x", id)
}

func newCorrelationID() string {
	return uuid.NewString()
}

func (c *Controller) logOrderErr(msg string, orderID [32]byte, err error) {
	c.logger.Error(msg, "error", err, "order_id", fmt.Sprintf("%x", orderID))
}

// gatewayCtx applies the bounded timeout every chain call gets (spec.md §5:
// "every chain I/O ... bounded timeouts"). 30s matches the teacher's
// default outbound RPC timeout.
func gatewayCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 30*time.Second)
}
