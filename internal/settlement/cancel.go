package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"shift_processor/internal/domain"
	"shift_processor/internal/poller"
)

// DefaultCancelGrace is the minimum age of a shift before it may be cancelled upstream.
const DefaultCancelGrace = 5 * time.Minute

// CancelOutcome tells what RequestCancel did.
type CancelOutcome int

const (
	CancelNotWaiting CancelOutcome = iota // shift already past waiting; nothing done
	CancelledNow
	CancelScheduled
	CancelAlreadyPending
)

func (c CancelOutcome) String() string {
	switch c {
	case CancelNotWaiting:
		return "not_waiting"
	case CancelledNow:
		return "cancelled"
	case CancelScheduled:
		return "scheduled"
	case CancelAlreadyPending:
		return "already_pending"
	default:
		return "unknown"
	}
}

// CancelAuditor records cancellations.
type CancelAuditor interface {
	RecordCancel(ctx context.Context, shiftID string, ts int64) error
}

// Canceller cancels waiting shifts, delaying the upstream call until the shift
// is older than the grace period. Pending cancellations live in a bounded TTL cache.
type Canceller struct {
	ex      ShiftCanceller
	tracker poller.Tracker
	grace   time.Duration
	auditor CancelAuditor
	onSched func()
	log     zerolog.Logger

	mu      sync.Mutex
	pending *expirable.LRU[string, *time.Timer]
	closed  bool

	now       clock
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// CancellerOption configures a Canceller.
type CancellerOption func(*Canceller)

// WithCancelAuditor records every upstream cancel.
func WithCancelAuditor(a CancelAuditor) CancellerOption {
	return func(c *Canceller) { c.auditor = a }
}

// WithScheduleHook is called whenever a delayed cancel is scheduled.
func WithScheduleHook(fn func()) CancellerOption {
	return func(c *Canceller) { c.onSched = fn }
}

// NewCanceller creates a canceller holding at most size pending cancellations.
func NewCanceller(ex ShiftCanceller, tracker poller.Tracker, grace time.Duration, size int, logger zerolog.Logger, opts ...CancellerOption) *Canceller {
	if grace <= 0 {
		grace = DefaultCancelGrace
	}
	if size <= 0 {
		size = 1024
	}
	c := &Canceller{
		ex:        ex,
		tracker:   tracker,
		grace:     grace,
		log:       logger.With().Str("component", "canceller").Logger(),
		pending:   expirable.NewLRU[string, *time.Timer](size, nil, grace+time.Minute),
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestCancel cancels shiftID if it is still waiting for a deposit.
// Tracking stops as soon as the request is accepted, even when the upstream
// cancel is delayed.
func (c *Canceller) RequestCancel(ctx context.Context, shiftID string) (CancelOutcome, error) {
	const op = "settlement.RequestCancel"

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return CancelNotWaiting, domain.Errorf(domain.KindConfiguration, op, "canceller closed")
	}
	if c.pending.Contains(shiftID) {
		c.mu.Unlock()
		c.log.Debug().Str("shift", shiftID).Msg("cancel already pending")
		return CancelAlreadyPending, nil
	}
	c.mu.Unlock()

	shift, err := c.ex.GetShift(ctx, shiftID)
	if err != nil {
		return CancelNotWaiting, domain.Rewrap(op, err, "fetch shift %s", shiftID)
	}
	if shift.Status != domain.StatusWaiting {
		return CancelNotWaiting, nil
	}

	age := c.now().Sub(shift.CreatedAt)
	if age > c.grace {
		if err := c.cancel(ctx, shiftID); err != nil {
			return CancelNotWaiting, err
		}
		c.stopTracking(ctx, shiftID)
		return CancelledNow, nil
	}

	delay := c.grace - age
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return CancelNotWaiting, domain.Errorf(domain.KindConfiguration, op, "canceller closed")
	}
	if c.pending.Contains(shiftID) {
		c.mu.Unlock()
		return CancelAlreadyPending, nil
	}
	timer := c.afterFunc(delay, func() { c.fire(shiftID) })
	c.pending.Add(shiftID, timer)
	c.mu.Unlock()

	if c.onSched != nil {
		c.onSched()
	}
	c.log.Info().Str("shift", shiftID).Dur("delay", delay).Msg("⏳ delayed cancellation scheduled")
	c.stopTracking(ctx, shiftID)
	return CancelScheduled, nil
}

// Pending reports whether a delayed cancel for shiftID is outstanding.
func (c *Canceller) Pending(shiftID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Contains(shiftID)
}

// Close stops every pending timer. Later requests are rejected.
func (c *Canceller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, t := range c.pending.Values() {
		t.Stop()
	}
	c.pending.Purge()
}

func (c *Canceller) fire(shiftID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending.Remove(shiftID)
	c.mu.Unlock()

	if err := c.cancel(context.Background(), shiftID); err != nil {
		c.log.Error().Err(err).Str("shift", shiftID).Msg("delayed cancellation failed")
	}
}

func (c *Canceller) cancel(ctx context.Context, shiftID string) error {
	if err := c.ex.CancelOrder(ctx, shiftID); err != nil {
		return domain.Rewrap("settlement.cancel", err, "cancel shift %s", shiftID)
	}
	c.log.Info().Str("shift", shiftID).Msg("🛑 shift cancelled")
	if c.auditor != nil {
		if err := c.auditor.RecordCancel(ctx, shiftID, c.now().UnixMicro()); err != nil {
			c.log.Warn().Err(err).Str("shift", shiftID).Msg("audit write failed")
		}
	}
	return nil
}

func (c *Canceller) stopTracking(ctx context.Context, shiftID string) {
	if c.tracker == nil {
		return
	}
	if err := c.tracker.StopPolling(ctx, shiftID); err != nil {
		c.log.Warn().Err(err).Str("shift", shiftID).Msg("stop polling failed")
	}
}
