package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedirectGuard(t *testing.T) {
	blocked := 0
	g := NewRedirectGuard(3, 0, 0, func() { blocked++ })

	for i := 0; i < 3; i++ {
		assert.True(t, g.Allow("shift-1", "inv-1"), "redirect %d", i+1)
	}
	assert.False(t, g.Allow("shift-1", "inv-1"))
	assert.Equal(t, 1, blocked)
	assert.Equal(t, 4, g.Count("shift-1", "inv-1"))

	assert.True(t, g.Allow("shift-1", "inv-2"), "pairs are counted separately")

	g.Reset("shift-1", "inv-1")
	assert.Zero(t, g.Count("shift-1", "inv-1"))
	assert.True(t, g.Allow("shift-1", "inv-1"))
}

func TestRedirectGuard_ResetsAfterQuietPeriod(t *testing.T) {
	g := NewRedirectGuard(1, 8, 50*time.Millisecond, nil)

	assert.True(t, g.Allow("s", "i"))
	assert.False(t, g.Allow("s", "i"))

	assert.Eventually(t, func() bool { return g.Count("s", "i") == 0 }, 2*time.Second, 20*time.Millisecond)
	assert.True(t, g.Allow("s", "i"))
}
