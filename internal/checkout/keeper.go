package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/platform/httpx"
)

var (
	errKeeperClientRequired = errors.New("lock keeper: api client is required")

	// ErrKeeperRunning is returned by Start while a refresh loop is active.
	ErrKeeperRunning = errors.New("lock keeper: already running")

	// ErrKeeperInvalidOrder flags a Start call without an order.
	ErrKeeperInvalidOrder = errors.New("lock keeper: order id is required")
)

// defaultRefreshFloor bounds how often the keeper calls the backend even
// when the remaining window is tiny.
const defaultRefreshFloor = 5 * time.Second

// LockKeeperDeps wires the API client and ambient dependencies.
type LockKeeperDeps struct {
	Client *api.Client
	Logger *zap.Logger
	Clock  func() time.Time
	Floor  time.Duration
}

// LockKeeper refreshes an order's price lock at the midpoint of the
// remaining window until stopped, the context ends, or the backend reports
// the lock as gone (order paid, cancelled, or expired server-side).
type LockKeeper struct {
	client *api.Client
	logger *zap.Logger
	now    func() time.Time
	floor  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	expires time.Time
}

// NewLockKeeper constructs a LockKeeper enforcing dependency validation.
func NewLockKeeper(deps LockKeeperDeps) (*LockKeeper, error) {
	if deps.Client == nil {
		return nil, errKeeperClientRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	floor := deps.Floor
	if floor <= 0 {
		floor = defaultRefreshFloor
	}

	return &LockKeeper{
		client: deps.Client,
		logger: logger,
		now:    func() time.Time { return clock().UTC() },
		floor:  floor,
	}, nil
}

// Start launches the refresh loop for the order. expiresAt seeds the first
// wait; later waits follow the expiry reported by each refresh.
func (k *LockKeeper) Start(ctx context.Context, orderID string, expiresAt time.Time) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ErrKeeperInvalidOrder
	}

	k.mu.Lock()
	if k.cancel != nil {
		k.mu.Unlock()
		return ErrKeeperRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	k.cancel = cancel
	k.done = done
	k.expires = expiresAt.UTC()
	k.mu.Unlock()

	go func() {
		defer close(done)
		k.run(runCtx, orderID)
	}()
	return nil
}

// Stop halts the refresh loop and waits for it to exit. Stopping an idle
// keeper is a no-op.
func (k *LockKeeper) Stop() {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	k.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// LockExpiresAt reports the expiry from the most recent successful refresh.
func (k *LockKeeper) LockExpiresAt() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.expires
}

func (k *LockKeeper) run(ctx context.Context, orderID string) {
	timer := time.NewTimer(k.wait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		order, err := k.client.RefreshPriceLock(ctx, orderID)
		switch {
		case err == nil:
			if order.LockExpiresAt != nil {
				k.setExpires(order.LockExpiresAt.UTC())
			}
			k.logger.Debug("price lock refreshed",
				zap.String("order_id", orderID),
				zap.Time("expires_at", k.LockExpiresAt()),
			)
		case ctx.Err() != nil:
			return
		case lockGone(err):
			k.logger.Warn("price lock no longer refreshable",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			return
		default:
			k.logger.Warn("price lock refresh failed",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			if k.now().After(k.LockExpiresAt()) {
				// The window elapsed with no successful refresh.
				return
			}
		}

		timer.Reset(k.wait())
	}
}

// wait returns half the remaining window, never under the floor.
func (k *LockKeeper) wait() time.Duration {
	remaining := k.LockExpiresAt().Sub(k.now())
	d := remaining / 2
	if d < k.floor {
		d = k.floor
	}
	return d
}

func (k *LockKeeper) setExpires(expires time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.expires = expires
}

// lockGone reports whether the backend says the lock cannot be refreshed
// anymore, as opposed to a transient failure worth retrying.
func lockGone(err error) bool {
	switch httpx.StatusOf(err) {
	case http.StatusNotFound, http.StatusConflict, http.StatusGone:
		return true
	default:
		return false
	}
}
