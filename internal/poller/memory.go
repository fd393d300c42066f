package poller

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// MemoryTracker is a bounded in-memory Tracker that only records and logs.
// Entries expire after ttl so abandoned payments never accumulate.
type MemoryTracker struct {
	active *expirable.LRU[string, Payment]
	failed *expirable.LRU[string, Failure]
	log    zerolog.Logger
	now    func() time.Time
}

// NewMemoryTracker creates a tracker holding at most size entries per state.
func NewMemoryTracker(size int, ttl time.Duration, logger zerolog.Logger) *MemoryTracker {
	if size <= 0 {
		size = 1024
	}
	return &MemoryTracker{
		active: expirable.NewLRU[string, Payment](size, nil, ttl),
		failed: expirable.NewLRU[string, Failure](size, nil, ttl),
		log:    logger.With().Str("component", "poller").Logger(),
		now:    time.Now,
	}
}

func (m *MemoryTracker) AddPayment(ctx context.Context, p Payment) error {
	if p.AddedAt.IsZero() {
		p.AddedAt = m.now()
	}
	m.active.Add(p.Shift.ID, p)
	m.failed.Remove(p.Shift.ID)
	m.log.Info().
		Str("shift", p.Shift.ID).
		Str("custom_id", p.CustomID).
		Str("settle_address", p.SettleAddress).
		Str("settle_amount", p.SettleAmount.Decimal.String()).
		Msg("📡 tracking payment")
	return nil
}

func (m *MemoryTracker) PollingShift(shiftID string) (Payment, bool) {
	return m.active.Get(shiftID)
}

func (m *MemoryTracker) FailedShift(shiftID string) (Failure, bool) {
	return m.failed.Get(shiftID)
}

func (m *MemoryTracker) StopPolling(ctx context.Context, shiftID string) error {
	if m.active.Remove(shiftID) {
		m.log.Info().Str("shift", shiftID).Msg("🛑 stopped tracking payment")
	}
	return nil
}

// MarkFailed moves a tracked shift to the failed set.
func (m *MemoryTracker) MarkFailed(shiftID, reason string) bool {
	p, ok := m.active.Get(shiftID)
	if !ok {
		return false
	}
	m.active.Remove(shiftID)
	m.failed.Add(shiftID, Failure{Payment: p, Reason: reason, FailedAt: m.now()})
	m.log.Warn().Str("shift", shiftID).Str("reason", reason).Msg("❌ payment tracking failed")
	return true
}

// Len returns the number of actively tracked shifts.
func (m *MemoryTracker) Len() int { return m.active.Len() }
