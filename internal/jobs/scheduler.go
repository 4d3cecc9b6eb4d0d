// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночное пополнение пула сценариев
// и ежедневная сводка по базе.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"iamamir.ir/mystery-bot/internal/features/story"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron         *cron.Cron
	storyService *story.Service
}

// NewScheduler создаёт планировщик задач с тегеранским часовым поясом.
func NewScheduler(storyService *story.Service, timezone string) *Scheduler {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить %s, используем UTC+3:30", timezone)
		loc = time.FixedZone("IRST", int(3.5*60*60))
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:         c,
		storyService: storyService,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ночное пополнение пула сценариев в 03:30
	s.cron.AddFunc("30 3 * * *", func() {
		log.Info("[CRON] Пополнение пула сценариев")
		if err := s.storyService.ReplenishScenarioPool(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка пополнения пула")
		}
	})

	// Ежедневная сводка в 00:00
	s.cron.AddFunc("0 0 * * *", func() {
		stories, sections, scenarios, err := s.storyService.Stats(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка чтения статистики")
			return
		}
		log.WithFields(log.Fields{
			"stories":   stories,
			"sections":  sections,
			"scenarios": scenarios,
		}).Info("[CRON] Ежедневная сводка")
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
