// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночной пересчёт likes_received,
// чистку сессий и попыток входа, чистку брошенных показов видео.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/config"
)

// Расписание задач
const (
	specResyncLikes   = "0 3 * * *"
	specPurgeSessions = "*/30 * * * *"
	specSweepPlayback = "@every 5m"
)

// LikesResyncer пересчитывает likes_received. Реализуется *profiles.Repository.
type LikesResyncer interface {
	ResyncLikesReceived(ctx context.Context) ([]string, error)
}

// ProfileRefresher перечитывает профиль в кеш.
type ProfileRefresher interface {
	Refresh(ctx context.Context, uid string)
}

// SessionPurger чистит таблицы авторизации. Реализуется *auth.Repository.
type SessionPurger interface {
	PurgeSessions(ctx context.Context) (int64, error)
	PurgeAttempts(ctx context.Context, before time.Time) (int64, error)
}

// PlaybackSweeper удаляет истёкшие показы. Реализуется *watch.Service.
type PlaybackSweeper interface {
	Cleanup() int
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron *cron.Cron
	cfg  *config.Config

	likes    LikesResyncer
	profiles ProfileRefresher
	sessions SessionPurger
	playback PlaybackSweeper

	now func() time.Time
}

// NewScheduler создаёт планировщик в часовом поясе приложения.
func NewScheduler(cfg *config.Config, likes LikesResyncer, profiles ProfileRefresher, sessions SessionPurger, playback PlaybackSweeper) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(cfg.Location())),
		cfg:      cfg,
		likes:    likes,
		profiles: profiles,
		sessions: sessions,
		playback: playback,
		now:      time.Now,
	}
}

// Start регистрирует и запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		run  func()
	}{
		{specResyncLikes, func() { s.resyncLikes(ctx) }},
		{specPurgeSessions, func() { s.purgeSessions(ctx) }},
		{specSweepPlayback, s.sweepPlayback},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.WithField("timezone", s.cfg.Location().String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// resyncLikes пересчитывает likes_received и обновляет изменившиеся профили в кеше.
func (s *Scheduler) resyncLikes(ctx context.Context) {
	log.Info("[CRON] Пересчёт likes_received")

	uids, err := s.likes.ResyncLikesReceived(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка пересчёта likes_received")
		return
	}
	for _, uid := range uids {
		s.profiles.Refresh(ctx, uid)
	}
	log.WithField("changed", len(uids)).Info("[CRON] likes_received пересчитан")
}

// purgeSessions удаляет закрытые и истёкшие сессии и попытки входа,
// которые уже не влияют на блокировку.
func (s *Scheduler) purgeSessions(ctx context.Context) {
	sessions, err := s.sessions.PurgeSessions(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки сессий")
		return
	}

	attempts, err := s.sessions.PurgeAttempts(ctx, s.now().Add(-s.cfg.AuthLockout))
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки попыток входа")
		return
	}

	log.WithFields(log.Fields{
		"sessions": sessions,
		"attempts": attempts,
	}).Debug("[CRON] Таблицы авторизации очищены")
}

func (s *Scheduler) sweepPlayback() {
	if removed := s.playback.Cleanup(); removed > 0 {
		log.WithField("removed", removed).Debug("[CRON] Удалены брошенные показы")
	}
}
