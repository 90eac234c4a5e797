package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPluralizeMinutes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{1, "минута"},
		{2, "минуты"},
		{4, "минуты"},
		{5, "минут"},
		{11, "минут"},
		{12, "минут"},
		{14, "минут"},
		{21, "минута"},
		{22, "минуты"},
		{49, "минут"},
		{0, "минут"},
		{100, "минут"},
		{101, "минута"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PluralizeMinutes(tt.n), "n=%d", tt.n)
	}
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "49 минут", FormatMinutes(49))
	assert.Equal(t, "1 минута", FormatMinutes(1))
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2026, 9, 1, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, "01.09.2026 15:04", FormatDateTime(ts))
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(ErrInsufficientBalance))
	assert.True(t, IsDomainError(fmt.Errorf("контекст: %w", ErrNoMatch)))
	assert.False(t, IsDomainError(errors.New("сбой сети")))
	assert.False(t, IsDomainError(nil))
}
