// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: чистку протухших заявок на поиск
// и ежедневный дайджест заявок на вывод админам.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/features/pool"
	"trueme.chat/telegram-bot/internal/features/users"
	"trueme.chat/telegram-bot/internal/features/wallet"
)

// WithdrawalLister возвращает заявки на вывод в статусе pending.
type WithdrawalLister interface {
	GetPendingWithdrawals(ctx context.Context) ([]*wallet.Withdrawal, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron        *cron.Cron
	pool        pool.Pool
	withdrawals WithdrawalLister
	searchTTL   time.Duration
	adminIDs    []int64
	sendFunc    func(userID int64, text string)
	staleText   string
}

// NewScheduler создаёт планировщик задач.
func NewScheduler(
	p pool.Pool,
	withdrawals WithdrawalLister,
	searchTTL time.Duration,
	adminIDs []int64,
	sendFunc func(userID int64, text string),
	staleText string,
) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		pool:        p,
		withdrawals: withdrawals,
		searchTTL:   searchTTL,
		adminIDs:    adminIDs,
		sendFunc:    sendFunc,
		staleText:   staleText,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Каждую минуту убираем из очереди поиска тех, кто ждёт дольше TTL.
	// Чистим только очередь плательщиков: female сидит в онлайне,
	// пока сама не выйдет.
	s.cron.AddFunc("* * * * *", func() {
		s.evictStaleSearches(ctx)
	})

	// Ежедневный дайджест заявок на вывод в 10:00
	s.cron.AddFunc("0 10 * * *", func() {
		s.sendWithdrawalDigest(ctx)
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) evictStaleSearches(ctx context.Context) {
	deadline := time.Now().Add(-s.searchTTL)
	evicted, err := s.pool.EvictStale(ctx, users.RoleMale, deadline)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка чистки очереди поиска")
		return
	}
	if len(evicted) == 0 {
		return
	}

	log.WithField("count", len(evicted)).Info("[CRON] Протухшие заявки на поиск убраны")
	for _, userID := range evicted {
		s.sendFunc(userID, s.staleText)
	}
}

func (s *Scheduler) sendWithdrawalDigest(ctx context.Context) {
	pending, err := s.withdrawals.GetPendingWithdrawals(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка получения заявок на вывод")
		return
	}
	if len(pending) == 0 {
		return
	}

	var total float64
	for _, wd := range pending {
		total += wd.Amount
	}
	text := fmt.Sprintf("Заявок на вывод: %d на сумму $%.2f. Откройте панель для выплат.", len(pending), total)

	for _, adminID := range s.adminIDs {
		s.sendFunc(adminID, text)
	}
}
