package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitDebit(t *testing.T) {
	tests := []struct {
		name     string
		free     int64
		referral int64
		paid     int64
		amount   int64
		want     DebitSplit
		ok       bool
	}{
		{
			name: "всё из бесплатных",
			free: 15, referral: 0, paid: 0, amount: 10,
			want: DebitSplit{Free: 10}, ok: true,
		},
		{
			name: "ровно весь бесплатный запас",
			free: 15, referral: 5, paid: 0, amount: 15,
			want: DebitSplit{Free: 15}, ok: true,
		},
		{
			name: "списание через две части",
			free: 10, referral: 20, paid: 0, amount: 15,
			want: DebitSplit{Free: 10, Referral: 5}, ok: true,
		},
		{
			name: "списание через все три части",
			free: 15, referral: 4, paid: 40, amount: 49,
			want: DebitSplit{Free: 15, Referral: 4, Paid: 30}, ok: true,
		},
		{
			name: "ровно весь запас",
			free: 20, referral: 9, paid: 20, amount: 49,
			want: DebitSplit{Free: 20, Referral: 9, Paid: 20}, ok: true,
		},
		{
			name: "не хватает одной минуты",
			free: 20, referral: 8, paid: 20, amount: 49,
			ok: false,
		},
		{
			name: "пустой кошелёк",
			free: 0, referral: 0, paid: 0, amount: 1,
			ok: false,
		},
		{
			name: "нулевое списание",
			free: 5, referral: 0, paid: 0, amount: 0,
			want: DebitSplit{}, ok: true,
		},
		{
			name: "отрицательная сумма",
			free: 5, referral: 0, paid: 0, amount: -1,
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SplitDebit(tt.free, tt.referral, tt.paid, tt.amount)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.amount, got.Free+got.Referral+got.Paid,
					"части списания должны давать в сумме запрошенную величину")
			}
		})
	}
}

func TestWalletAvailable(t *testing.T) {
	w := &Wallet{FreeMinutes: 15, ReferralMinutes: 3, PaidMinutes: 60}
	assert.Equal(t, int64(78), w.Available())

	empty := &Wallet{}
	assert.Equal(t, int64(0), empty.Available())
}
