// Package profiles — cache.go хранит профили в памяти.
//
// Промах в Get запускает ОДНУ асинхронную загрузку; после успешной загрузки
// профиль попадает в карту, а копия всей карты рассылается подписчикам.
// Вытеснения нет: карта растёт всё время жизни процесса.
package profiles

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// fetchTimeout — таймаут фоновой загрузки профиля.
const fetchTimeout = 10 * time.Second

// Fetcher читает профиль из хранилища. Реализуется *Repository.
type Fetcher interface {
	Get(ctx context.Context, uid string) (*Profile, error)
}

// Cache — карта uid → профиль.
type Cache struct {
	fetcher Fetcher

	mu       sync.Mutex
	profiles map[string]*Profile
	inflight map[string]struct{}
	// Номер версии профиля: растёт при каждом Put
	gen      map[string]uint64
	subs     map[uint64]*Subscription
	nextID   uint64

	wg sync.WaitGroup
}

// NewCache создаёт пустой кеш.
func NewCache(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher:  fetcher,
		profiles: make(map[string]*Profile),
		inflight: make(map[string]struct{}),
		gen:      make(map[string]uint64),
		subs:     make(map[uint64]*Subscription),
	}
}

// Subscription получает копии всей карты после каждого изменения.
// Буфер 1: медленный подписчик видит только последнюю версию карты.
type Subscription struct {
	id      uint64
	updates chan map[string]Profile
	cache   *Cache
	once    sync.Once
}

// Updates — канал с копиями карты.
func (s *Subscription) Updates() <-chan map[string]Profile { return s.updates }

// Cancel отписывается. Повторный вызов безопасен.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cache.mu.Lock()
		delete(s.cache.subs, s.id)
		s.cache.mu.Unlock()
	})
}

// Subscribe подписывается на изменения карты.
func (c *Cache) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	sub := &Subscription{id: c.nextID, updates: make(chan map[string]Profile, 1), cache: c}
	c.subs[sub.id] = sub
	return sub
}

// Get возвращает профиль из кеша. При промахе запускает фоновую загрузку
// (если она ещё не идёт) и возвращает false.
func (c *Cache) Get(ctx context.Context, uid string) (*Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.profiles[uid]; ok {
		return p.Clone(), true
	}
	if _, ok := c.inflight[uid]; ok {
		return nil, false
	}

	c.inflight[uid] = struct{}{}
	c.wg.Add(1)
	go c.fetchAsync(context.WithoutCancel(ctx), uid, c.gen[uid])
	return nil, false
}

// Prefetch — Get без результата: прогревает кеш.
func (c *Cache) Prefetch(ctx context.Context, uid string) {
	c.Get(ctx, uid)
}

// fetchAsync не затирает профиль, если пока шла загрузка его успели
// положить заново (Refresh после изменения свежее фоновой загрузки).
func (c *Cache) fetchAsync(ctx context.Context, uid string, gen uint64) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	p, err := c.fetcher.Get(ctx, uid)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, uid)

	if err != nil {
		log.WithError(err).WithField("uid", uid).Warn("Не удалось загрузить профиль в кеш")
		return
	}
	if c.gen[uid] != gen {
		log.WithField("uid", uid).Debug("Профиль обновился во время загрузки, результат отброшен")
		return
	}
	c.putLocked(p)
}

// Load — синхронный вариант Get для обработчиков запросов.
func (c *Cache) Load(ctx context.Context, uid string) (*Profile, error) {
	c.mu.Lock()
	if p, ok := c.profiles[uid]; ok {
		c.mu.Unlock()
		return p.Clone(), nil
	}
	c.mu.Unlock()

	return c.Refresh(ctx, uid)
}

// Refresh перечитывает профиль (например, после изменения) и обновляет кеш.
func (c *Cache) Refresh(ctx context.Context, uid string) (*Profile, error) {
	p, err := c.fetcher.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	c.Put(p)
	return p.Clone(), nil
}

// Put кладёт профиль в кеш и рассылает карту подписчикам.
func (c *Cache) Put(p *Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(p)
}

func (c *Cache) putLocked(p *Profile) {
	c.profiles[p.UID] = p.Clone()
	c.gen[p.UID]++
	c.broadcastLocked()
}

// Snapshot возвращает копию всей карты.
func (c *Cache) Snapshot() map[string]Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len — число профилей в кеше.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.profiles)
}

// Wait ждёт завершения фоновых загрузок (shutdown и тесты).
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) snapshotLocked() map[string]Profile {
	out := make(map[string]Profile, len(c.profiles))
	for uid, p := range c.profiles {
		out[uid] = *p.Clone()
	}
	return out
}

func (c *Cache) broadcastLocked() {
	if len(c.subs) == 0 {
		return
	}
	for _, sub := range c.subs {
		// Каждый подписчик получает свою копию
		snapshot := c.snapshotLocked()
		select {
		case <-sub.updates:
		default:
		}
		sub.updates <- snapshot
	}
}
