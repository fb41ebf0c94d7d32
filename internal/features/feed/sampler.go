// Package feed собирает ленту видео.
//
// Страница ленты — случайная выборка из ВСЕЙ коллекции: каждый вызов заново
// перемешивает коллекцию и берёт первые FEED_PAGE_SIZE видео. Ключи страниц —
// просто номера, стабильным курсором они не являются, страницы могут пересекаться.
package feed

import (
	"context"
	"fmt"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/features/videos"
)

// Source отдаёт всю коллекцию видео. Реализуется videos.Service.
type Source interface {
	ListAll(ctx context.Context) ([]*videos.Video, error)
}

// Page — одна страница ленты.
type Page struct {
	Items   []*videos.Video `json:"items"`
	PrevKey *int            `json:"prevKey"`
	NextKey *int            `json:"nextKey"`
}

// Sampler выдаёт страницы ленты.
type Sampler struct {
	source   Source
	pageSize int
	shuffle  func(n int, swap func(i, j int))
}

// NewSampler создаёт сэмплер с размером страницы из конфига.
func NewSampler(source Source, cfg *config.Config) *Sampler {
	size := cfg.FeedPageSize
	if size <= 0 {
		size = 5
	}
	return &Sampler{source: source, pageSize: size, shuffle: rand.Shuffle}
}

// RefreshKey — ключ, с которого лента начинается заново.
func RefreshKey() int { return 1 }

// LoadPage возвращает страницу pageKey (nil — первая страница).
// Ошибка загрузки коллекции оборачивается в common.ErrFeedUnavailable.
func (s *Sampler) LoadPage(ctx context.Context, pageKey *int) (*Page, error) {
	page := RefreshKey()
	if pageKey != nil {
		page = *pageKey
	}
	all, err := s.source.ListAll(ctx)
	if err != nil {
		log.WithError(err).WithField("page", page).Error("Не удалось загрузить коллекцию видео для ленты")
		return nil, fmt.Errorf("%w: %w", common.ErrFeedUnavailable, err)
	}

	items := make([]*videos.Video, len(all))
	copy(items, all)
	s.shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	if len(items) > s.pageSize {
		items = items[:s.pageSize]
	}

	// Ключи не ограничены снизу: соседние страницы — просто page±1
	result := &Page{Items: items, NextKey: intPtr(page + 1)}
	if page != RefreshKey() {
		result.PrevKey = intPtr(page - 1)
	}
	return result, nil
}

func intPtr(n int) *int { return &n }
