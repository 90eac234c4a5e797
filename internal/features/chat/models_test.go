package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBilling() Billing {
	return Billing{
		CapMinutes:        30,
		FeeRate:           0.30,
		TierTwoSessions:   1200,
		TierThreeSessions: 3000,
		TierRates:         [3]float64{1.00, 1.05, 1.10},
	}
}

func TestBillableMinutes(t *testing.T) {
	b := testBilling()
	start := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		dur  time.Duration
		want int
	}{
		{"мгновенная остановка оплачивается как минута", 5 * time.Second, 1},
		{"неполная минута округляется вниз, но не ниже одной", 59 * time.Second, 1},
		{"ровно одна минута", time.Minute, 1},
		{"десять с половиной минут", 10*time.Minute + 30*time.Second, 10},
		{"ровно предел", 30 * time.Minute, 30},
		{"дольше предела клампится", 45 * time.Minute, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.BillableMinutes(start, start.Add(tt.dur)))
		})
	}
}

func TestLevelFor(t *testing.T) {
	b := testBilling()

	assert.Equal(t, 1, b.LevelFor(0))
	assert.Equal(t, 1, b.LevelFor(1199))
	assert.Equal(t, 2, b.LevelFor(1200))
	assert.Equal(t, 2, b.LevelFor(2999))
	assert.Equal(t, 3, b.LevelFor(3000))
	assert.Equal(t, 3, b.LevelFor(100000))
}

func TestRate(t *testing.T) {
	b := testBilling()

	assert.Equal(t, 1.00, b.Rate(1))
	assert.Equal(t, 1.05, b.Rate(2))
	assert.Equal(t, 1.10, b.Rate(3))
	// Выход за границы клампится
	assert.Equal(t, 1.00, b.Rate(0))
	assert.Equal(t, 1.10, b.Rate(7))
}

func TestPayout(t *testing.T) {
	b := testBilling()

	// Одна минута на первом уровне: 49 * 0.7 / 30
	assert.InDelta(t, 1.1433333, b.Payout(49, 1, 1), 1e-6)

	// Полная сессия на первом уровне съедает всю чистую выручку
	assert.InDelta(t, 34.3, b.Payout(49, 30, 1), 1e-9)

	// Уровень масштабирует выплату
	assert.InDelta(t, 34.3*1.05, b.Payout(49, 30, 2), 1e-9)
	assert.InDelta(t, 34.3*1.10, b.Payout(49, 30, 3), 1e-9)

	// Десять минут на первом уровне
	assert.InDelta(t, 49*0.7/30*10, b.Payout(49, 10, 1), 1e-9)
}
