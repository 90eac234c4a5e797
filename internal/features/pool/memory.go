// Package pool — memory.go реализует Pool и Pairs в памяти процесса.
// Используется в тестах и при локальной разработке без Redis.
// Все операции идут под одним мьютексом, поэтому матч здесь так же
// атомарен, как Lua-скрипт в Redis-реализации.
package pool

import (
	"context"
	"sync"
	"time"

	"trueme.chat/telegram-bot/internal/common"
)

type memberEntry struct {
	userID   int64
	joinedAt time.Time
}

// MemoryStore — потокобезопасная реализация Pool и Pairs в памяти.
type MemoryStore struct {
	mu       sync.Mutex
	queues   map[string][]memberEntry // role -> FIFO очередь
	busy     map[int64]bool
	partners map[int64]int64
	now      func() time.Time
}

// NewMemoryStore создаёт пустое хранилище матчмейкинга.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queues:   make(map[string][]memberEntry),
		busy:     make(map[int64]bool),
		partners: make(map[int64]int64),
		now:      time.Now,
	}
}

// Join добавляет пользователя в очередь роли role.
func (s *MemoryStore) Join(_ context.Context, userID int64, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy[userID] {
		return nil
	}
	for _, e := range s.queues[role] {
		if e.userID == userID {
			// Уже в очереди — позицию не меняем
			return nil
		}
	}
	s.queues[role] = append(s.queues[role], memberEntry{userID: userID, joinedAt: s.now()})
	return nil
}

// Leave убирает пользователя из всех очередей.
func (s *MemoryStore) Leave(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for role, queue := range s.queues {
		for i, e := range queue {
			if e.userID == userID {
				s.queues[role] = append(queue[:i], queue[i+1:]...)
				break
			}
		}
	}
	return nil
}

// MatchOne атомарно выбирает пару (male, female) из голов очередей.
func (s *MemoryStore) MatchOne(_ context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	males := s.queues["male"]
	females := s.queues["female"]
	if len(males) == 0 || len(females) == 0 {
		return 0, 0, common.ErrNoMatch
	}

	male := males[0]
	female := females[0]

	// Занятый в голове очереди вычищается, матч — в следующий раз
	if s.busy[male.userID] {
		s.queues["male"] = males[1:]
		return 0, 0, common.ErrNoMatch
	}
	if s.busy[female.userID] {
		s.queues["female"] = females[1:]
		return 0, 0, common.ErrNoMatch
	}

	s.queues["male"] = males[1:]
	s.queues["female"] = females[1:]
	s.busy[male.userID] = true
	s.busy[female.userID] = true
	return male.userID, female.userID, nil
}

// Release снимает флаги занятости.
func (s *MemoryStore) Release(_ context.Context, a, b int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.busy, a)
	delete(s.busy, b)
	return nil
}

// EvictStale убирает из очереди всех, кто ждёт дольше deadline.
func (s *MemoryStore) EvictStale(_ context.Context, role string, deadline time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []int64
	var kept []memberEntry
	for _, e := range s.queues[role] {
		if e.joinedAt.Before(deadline) {
			evicted = append(evicted, e.userID)
		} else {
			kept = append(kept, e)
		}
	}
	s.queues[role] = kept
	return evicted, nil
}

// Set связывает пару в обе стороны.
func (s *MemoryStore) Set(_ context.Context, a, b int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partners[a] = b
	s.partners[b] = a
	return nil
}

// Clear разрывает пару для обеих сторон.
func (s *MemoryStore) Clear(_ context.Context, a, b int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.partners, a)
	delete(s.partners, b)
	return nil
}

// Partner возвращает партнёра пользователя.
func (s *MemoryStore) Partner(_ context.Context, userID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partner, ok := s.partners[userID]
	return partner, ok, nil
}
