// Package aura — service.go содержит проверки и бизнес-логику ауры.
package aura

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
)

// maxDelta — максимальное изменение ауры за один раз (по модулю).
const maxDelta = 1000

// defaultHistoryLimit — сколько записей журнала отдавать по умолчанию.
const defaultHistoryLimit = 20

// Store — хранилище ауры. Реализуется *Repository.
type Store interface {
	Increment(ctx context.Context, uid, fromUID string, delta, threshold int) (*Result, error)
	History(ctx context.Context, uid string, limit int) ([]*LogEntry, error)
}

// ProfileRefresher обновляет профиль в кеше после изменения ауры.
type ProfileRefresher interface {
	Refresh(ctx context.Context, uid string)
}

// Service управляет аурой.
type Service struct {
	store    Store
	profiles ProfileRefresher
	cfg      *config.Config
}

// NewService создаёт сервис ауры.
func NewService(store Store, profiles ProfileRefresher, cfg *config.Config) *Service {
	return &Service{store: store, profiles: profiles, cfg: cfg}
}

// Increment меняет ауру uid на delta от имени fromUID.
// Проверки:
//   - delta != 0 и |delta| <= 1000
//   - нельзя менять ауру самому себе
func (s *Service) Increment(ctx context.Context, fromUID, uid string, delta int) (*Result, error) {
	if delta == 0 || delta > maxDelta || delta < -maxDelta {
		return nil, common.ErrInvalidAmount
	}
	if fromUID == uid {
		return nil, common.ErrSelfAura
	}

	res, err := s.store.Increment(ctx, uid, fromUID, delta, s.cfg.AuraAwardThreshold)
	if err != nil {
		return nil, err
	}

	fields := log.Fields{
		"uid":   uid,
		"from":  fromUID,
		"delta": delta,
		"total": res.TotalAura,
	}
	if res.Awarded {
		log.WithFields(fields).Info("Аура достигла порога, выдана награда")
	} else {
		log.WithFields(fields).Debug("Аура изменена")
	}

	if s.profiles != nil {
		s.profiles.Refresh(ctx, uid)
	}
	return res, nil
}

// History возвращает журнал ауры (новые сверху).
func (s *Service) History(ctx context.Context, uid string, limit int) ([]*LogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	return s.store.History(ctx, uid, limit)
}
