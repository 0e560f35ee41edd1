package favorites

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"newshub-reader/internal/domain"
	"newshub-reader/internal/infra/metrics"
)

// Service — единственный владелец набора избранного на устройстве. Все мутации
// проходят через него: сначала снапшот, затем память, затем уведомление.
type Service struct {
	snapshots   domain.SnapshotRepo
	gateway     domain.NewsGateway
	broadcaster domain.Broadcaster
	log         zerolog.Logger

	mu    sync.RWMutex
	items []domain.Article
	index map[string]struct{}
}

// NewService создаёт сервис избранного. Gateway может быть nil: тогда сервис
// работает полностью локально, без удалённых best-effort мутаций и сверки.
func NewService(snapshots domain.SnapshotRepo, gateway domain.NewsGateway, broadcaster domain.Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		snapshots:   snapshots,
		gateway:     gateway,
		broadcaster: broadcaster,
		log:         logger,
		items:       []domain.Article{},
		index:       map[string]struct{}{},
	}
}

// Init выполняет стартовую сверку: локальный снапшот — база, удалённое избранное
// дополняет её. Недоступность бэкенда не ошибка: избранное обязано работать офлайн.
// Результат сразу персистится, чтобы мутация до следующей сверки его не откатила.
func (s *Service) Init(ctx context.Context) error {
	start := time.Now()
	local, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	merged := local
	if s.gateway != nil {
		remote, err := s.gateway.FetchRemoteFavorites(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("favorites: удалённое избранное недоступно, используем локальную базу")
		} else {
			merged = Merge(local, remote)
		}
	}
	if err := s.snapshots.Save(ctx, merged); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	s.mu.Lock()
	s.items = merged
	s.index = buildIndex(merged)
	s.mu.Unlock()
	metrics.MergeDurationSeconds.Observe(time.Since(start).Seconds())
	metrics.FavoritesCount.Set(float64(len(merged)))
	return nil
}

// Merge объединяет локальную базу с удалённым избранным. Локальный порядок
// сохраняется и выигрывает конфликты; удалённые записи с новыми URL добавляются
// в конец в порядке бэкенда.
func Merge(local, remote []domain.Article) []domain.Article {
	merged := make([]domain.Article, 0, len(local)+len(remote))
	merged = append(merged, local...)
	seen := buildIndex(local)
	for _, article := range remote {
		if _, ok := seen[article.URL]; ok {
			continue
		}
		seen[article.URL] = struct{}{}
		merged = append(merged, article)
	}
	return merged
}

func buildIndex(articles []domain.Article) map[string]struct{} {
	index := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		index[a.URL] = struct{}{}
	}
	return index
}

// Refresh перечитывает снапшот в память. Вызывается наблюдателем по сигналу
// broadcaster'а, когда мутацию совершил другой процесс. Без сетевого I/O.
func (s *Service) Refresh(ctx context.Context) error {
	local, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	s.mu.Lock()
	s.items = local
	s.index = buildIndex(local)
	s.mu.Unlock()
	metrics.FavoritesCount.Set(float64(len(local)))
	return nil
}

// All возвращает копию текущего набора в порядке вставки. Без сетевого I/O.
func (s *Service) All() []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Article, len(s.items))
	copy(out, s.items)
	return out
}

// Contains проверяет, сохранена ли статья с таким URL.
func (s *Service) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[url]
	return ok
}

// Count возвращает размер набора.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Add добавляет статью в конец набора. Повторное добавление того же URL — no-op.
// Снапшот и память обновляются атомарно относительно читателей; при отказе
// снапшота память не трогается и мутация считается неудавшейся.
func (s *Service) Add(ctx context.Context, article domain.Article) error {
	s.mu.Lock()
	if _, ok := s.index[article.URL]; ok {
		s.mu.Unlock()
		return nil
	}
	next := make([]domain.Article, 0, len(s.items)+1)
	next = append(next, s.items...)
	next = append(next, article)
	if err := s.snapshots.Save(ctx, next); err != nil {
		s.mu.Unlock()
		metrics.ObserveMutation("add", err)
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	s.items = next
	s.index[article.URL] = struct{}{}
	count := len(next)
	s.mu.Unlock()

	metrics.ObserveMutation("add", nil)
	metrics.FavoritesCount.Set(float64(count))
	s.broadcaster.Notify(ctx)
	if s.gateway != nil {
		go s.pushRemoteAdd(article)
	}
	return nil
}

// Remove удаляет статью по URL. Отсутствующий URL — no-op.
func (s *Service) Remove(ctx context.Context, url string) error {
	s.mu.Lock()
	if _, ok := s.index[url]; !ok {
		s.mu.Unlock()
		return nil
	}
	next := make([]domain.Article, 0, len(s.items)-1)
	for _, a := range s.items {
		if a.URL == url {
			continue
		}
		next = append(next, a)
	}
	if err := s.snapshots.Save(ctx, next); err != nil {
		s.mu.Unlock()
		metrics.ObserveMutation("remove", err)
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	s.items = next
	delete(s.index, url)
	count := len(next)
	s.mu.Unlock()

	metrics.ObserveMutation("remove", nil)
	metrics.FavoritesCount.Set(float64(count))
	s.broadcaster.Notify(ctx)
	if s.gateway != nil {
		go s.pushRemoteRemove(url)
	}
	return nil
}

// Удалённые мутации best-effort: отказ логируется, не ретраится и не откатывает
// локальное состояние.
func (s *Service) pushRemoteAdd(article domain.Article) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.gateway.AddRemoteFavorite(ctx, article); err != nil {
		s.log.Warn().Err(err).Str("url", article.URL).Msg("favorites: удалённое добавление не удалось")
	}
}

func (s *Service) pushRemoteRemove(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.gateway.RemoveRemoteFavorite(ctx, url); err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("favorites: удалённое удаление не удалось")
	}
}
