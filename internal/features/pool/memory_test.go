package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trueme.chat/telegram-bot/internal/common"
)

func TestJoinIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Join(ctx, 1, "male"))
	require.NoError(t, s.Join(ctx, 2, "male"))
	// Повторный вход не двигает в хвост
	require.NoError(t, s.Join(ctx, 1, "male"))
	require.NoError(t, s.Join(ctx, 10, "female"))

	male, female, err := s.MatchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), male, "первым матчится самый давний ожидающий")
	assert.Equal(t, int64(10), female)
}

func TestMatchOneFIFO(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, s.Join(ctx, id, "male"))
	}
	for _, id := range []int64{11, 12, 13} {
		require.NoError(t, s.Join(ctx, id, "female"))
	}

	for i := 0; i < 3; i++ {
		male, female, err := s.MatchOne(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), male)
		assert.Equal(t, int64(i+11), female)
	}

	_, _, err := s.MatchOne(ctx)
	assert.ErrorIs(t, err, common.ErrNoMatch)
}

func TestMatchOneBothOrNeither(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Только male — матча нет, очередь не тронута
	require.NoError(t, s.Join(ctx, 1, "male"))
	_, _, err := s.MatchOne(ctx)
	require.ErrorIs(t, err, common.ErrNoMatch)

	// Очередь цела: добавление female даёт матч с тем же male
	require.NoError(t, s.Join(ctx, 11, "female"))
	male, female, err := s.MatchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), male)
	assert.Equal(t, int64(11), female)
}

func TestJoinWhileBusy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Join(ctx, 1, "male"))
	require.NoError(t, s.Join(ctx, 11, "female"))
	_, _, err := s.MatchOne(ctx)
	require.NoError(t, err)

	// Занятый пользователь не встаёт в очередь
	require.NoError(t, s.Join(ctx, 1, "male"))
	require.NoError(t, s.Join(ctx, 12, "female"))
	_, _, err = s.MatchOne(ctx)
	assert.ErrorIs(t, err, common.ErrNoMatch)

	// После Release вход снова возможен
	require.NoError(t, s.Release(ctx, 1, 11))
	require.NoError(t, s.Join(ctx, 1, "male"))
	male, female, err := s.MatchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), male)
	assert.Equal(t, int64(12), female)
}

func TestMatchOneConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const pairs = 50
	for i := int64(1); i <= pairs; i++ {
		require.NoError(t, s.Join(ctx, i, "male"))
		require.NoError(t, s.Join(ctx, 1000+i, "female"))
	}

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < pairs*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			male, female, err := s.MatchOne(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[male], "male %d сматчен дважды", male)
			assert.False(t, seen[female], "female %d сматчена дважды", female)
			seen[male] = true
			seen[female] = true
		}()
	}
	wg.Wait()

	// Каждый участник сматчен ровно один раз
	assert.Len(t, seen, pairs*2)
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Join(ctx, 1, "male"))
	require.NoError(t, s.Leave(ctx, 1))
	require.NoError(t, s.Join(ctx, 11, "female"))

	_, _, err := s.MatchOne(ctx)
	assert.ErrorIs(t, err, common.ErrNoMatch)

	// Leave несуществующего — no-op
	require.NoError(t, s.Leave(ctx, 99))
}

func TestEvictStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }

	require.NoError(t, s.Join(ctx, 1, "male"))
	current = base.Add(10 * time.Minute)
	require.NoError(t, s.Join(ctx, 2, "male"))

	// Протух только первый
	evicted, err := s.EvictStale(ctx, "male", base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, evicted)

	// Второй остался и может быть сматчен
	require.NoError(t, s.Join(ctx, 11, "female"))
	male, _, err := s.MatchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), male)
}

func TestPairsSymmetry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, 1, 11))

	p, ok, err := s.Partner(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(11), p)

	p, ok, err = s.Partner(ctx, 11)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), p)

	require.NoError(t, s.Clear(ctx, 1, 11))

	_, ok, err = s.Partner(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.Partner(ctx, 11)
	require.NoError(t, err)
	assert.False(t, ok)
}
