package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"newshub-reader/internal/domain"
)

// stubSnapshots — разделяемый между "процессами" слой хранения.
type stubSnapshots struct {
	mu       sync.Mutex
	data     []domain.Article
	failSave bool
	saves    int
}

func (s *stubSnapshots) Load(context.Context) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Article, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s *stubSnapshots) Save(_ context.Context, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("диск переполнен")
	}
	s.saves++
	s.data = make([]domain.Article, len(articles))
	copy(s.data, articles)
	return nil
}

type stubBroadcaster struct {
	mu       sync.Mutex
	notified int
}

func (b *stubBroadcaster) Notify(context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notified++
}

func (b *stubBroadcaster) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	return ch, func() {}
}

func (b *stubBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notified
}

type stubGateway struct {
	remote     []domain.Article
	remoteErr  error
	mutations  chan string
	mutateFail bool
}

func (g *stubGateway) FetchArticles(context.Context, domain.FeedQuery) ([]domain.Article, error) {
	return nil, nil
}
func (g *stubGateway) FetchTrending(context.Context, string) ([]domain.Article, error) {
	return nil, nil
}
func (g *stubGateway) Recommend(context.Context, domain.RecommendQuery) ([]domain.Article, error) {
	return nil, nil
}
func (g *stubGateway) Summarize(context.Context, string, int, int) (string, error) { return "", nil }
func (g *stubGateway) AnalyzeSentiment(context.Context, string) (domain.Sentiment, error) {
	return domain.Sentiment{}, nil
}
func (g *stubGateway) FetchRemoteFavorites(context.Context) ([]domain.Article, error) {
	return g.remote, g.remoteErr
}
func (g *stubGateway) AddRemoteFavorite(context.Context, domain.Article) error {
	if g.mutations != nil {
		g.mutations <- "add"
	}
	if g.mutateFail {
		return domain.ErrBackendUnreachable
	}
	return nil
}
func (g *stubGateway) RemoveRemoteFavorite(context.Context, string) error {
	if g.mutations != nil {
		g.mutations <- "remove"
	}
	if g.mutateFail {
		return domain.ErrBackendUnreachable
	}
	return nil
}

func article(url, title string) domain.Article {
	return domain.Article{URL: url, Title: title, Source: domain.Source{Name: "S"}}
}

func urls(articles []domain.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.URL
	}
	return out
}

func TestAddIsIdempotent(t *testing.T) {
	snaps := &stubSnapshots{}
	svc := NewService(snaps, nil, &stubBroadcaster{}, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Add(ctx, article("u1", "T1")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.Add(ctx, article("u1", "другой заголовок")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	all := svc.All()
	if len(all) != 1 || all[0].Title != "T1" {
		t.Fatalf("повторный Add должен быть no-op: %+v", all)
	}
	if snaps.saves != 1 {
		t.Fatalf("no-op не должен персистить: %d записей", snaps.saves)
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	snaps := &stubSnapshots{}
	bc := &stubBroadcaster{}
	svc := NewService(snaps, nil, bc, zerolog.Nop())

	if err := svc.Remove(context.Background(), "нет такого"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if snaps.saves != 0 || bc.count() != 0 {
		t.Fatalf("no-op не должен ни персистить, ни уведомлять")
	}
}

func TestUniquePerURLUnderMixedMutations(t *testing.T) {
	svc := NewService(&stubSnapshots{}, nil, &stubBroadcaster{}, zerolog.Nop())
	ctx := context.Background()

	_ = svc.Add(ctx, article("u1", "A"))
	_ = svc.Add(ctx, article("u2", "B"))
	_ = svc.Add(ctx, article("u1", "A'"))
	_ = svc.Remove(ctx, "u2")
	_ = svc.Add(ctx, article("u2", "B'"))
	_ = svc.Add(ctx, article("u2", "B''"))

	got := urls(svc.All())
	want := []string{"u1", "u2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("набор нарушил уникальность или порядок (-want +got):\n%s", diff)
	}
}

func TestEndToEndScenario(t *testing.T) {
	svc := NewService(&stubSnapshots{}, nil, &stubBroadcaster{}, zerolog.Nop())
	ctx := context.Background()

	_ = svc.Add(ctx, article("u1", "T1"))
	_ = svc.Add(ctx, article("u2", "T2"))
	_ = svc.Remove(ctx, "u1")

	all := svc.All()
	if len(all) != 1 || all[0].URL != "u2" || all[0].Title != "T2" {
		t.Fatalf("ожидали [u2], получили %+v", all)
	}
	if svc.Contains("u1") || !svc.Contains("u2") {
		t.Fatalf("Contains противоречит содержимому набора")
	}
	if svc.Count() != 1 {
		t.Fatalf("ожидали Count=1, получили %d", svc.Count())
	}
}

func TestMergeDeterminism(t *testing.T) {
	local := []domain.Article{article("a", "A"), article("b", "B")}
	remote := []domain.Article{article("b", "B-remote"), article("c", "C")}

	merged := Merge(local, remote)

	want := []string{"a", "b", "c"}
	if diff := cmp.Diff(want, urls(merged)); diff != "" {
		t.Fatalf("слияние недетерминировано (-want +got):\n%s", diff)
	}
	// При конфликте URL выигрывает локальная версия.
	if merged[1].Title != "B" {
		t.Fatalf("локальная запись должна выигрывать конфликт: %+v", merged[1])
	}
}

func TestInitMergesRemoteAndPersists(t *testing.T) {
	snaps := &stubSnapshots{data: []domain.Article{article("a", "A"), article("b", "B")}}
	gw := &stubGateway{remote: []domain.Article{article("b", "B"), article("c", "C")}}
	svc := NewService(snaps, gw, &stubBroadcaster{}, zerolog.Nop())

	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, urls(svc.All())); diff != "" {
		t.Fatalf("слияние на старте неверно (-want +got):\n%s", diff)
	}
	// Результат сверки персистится сразу.
	if diff := cmp.Diff([]string{"a", "b", "c"}, urls(snaps.data)); diff != "" {
		t.Fatalf("слитый набор не записан (-want +got):\n%s", diff)
	}
}

func TestInitOfflineFallsBackToLocalBase(t *testing.T) {
	snaps := &stubSnapshots{data: []domain.Article{article("a", "A")}}
	gw := &stubGateway{remoteErr: domain.ErrBackendUnreachable}
	svc := NewService(snaps, gw, &stubBroadcaster{}, zerolog.Nop())

	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("офлайн-сверка не должна быть ошибкой: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, urls(svc.All())); diff != "" {
		t.Fatalf("локальная база изменилась (-want +got):\n%s", diff)
	}
}

func TestPersistenceFailureLeavesMemoryIntact(t *testing.T) {
	snaps := &stubSnapshots{}
	bc := &stubBroadcaster{}
	svc := NewService(snaps, nil, bc, zerolog.Nop())
	ctx := context.Background()

	_ = svc.Add(ctx, article("u1", "T1"))
	snaps.failSave = true

	err := svc.Add(ctx, article("u2", "T2"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("ожидали ErrPersistence, получили %v", err)
	}
	if diff := cmp.Diff([]string{"u1"}, urls(svc.All())); diff != "" {
		t.Fatalf("память не должна опережать снапшот (-want +got):\n%s", diff)
	}
	if bc.count() != 1 {
		t.Fatalf("неудавшаяся мутация не должна уведомлять, ожидали 1 сигнал от первой: %d", bc.count())
	}
}

func TestMutationNotifiesEvenIfRemotePushFails(t *testing.T) {
	gw := &stubGateway{mutations: make(chan string, 1), mutateFail: true}
	bc := &stubBroadcaster{}
	svc := NewService(&stubSnapshots{}, gw, bc, zerolog.Nop())

	if err := svc.Add(context.Background(), article("u1", "T1")); err != nil {
		t.Fatalf("отказ удалённой мутации не должен ронять локальную: %v", err)
	}
	if bc.count() != 1 {
		t.Fatalf("broadcaster должен сработать безусловно")
	}
	select {
	case op := <-gw.mutations:
		if op != "add" {
			t.Fatalf("ожидали удалённый add, получили %s", op)
		}
	case <-time.After(time.Second):
		t.Fatalf("удалённая мутация не была запущена")
	}
	if !svc.Contains("u1") {
		t.Fatalf("локальное состояние не должно откатываться")
	}
}

func TestCrossProcessPropagationViaRefresh(t *testing.T) {
	shared := &stubSnapshots{}
	first := NewService(shared, nil, &stubBroadcaster{}, zerolog.Nop())
	second := NewService(shared, nil, &stubBroadcaster{}, zerolog.Nop())
	ctx := context.Background()

	if err := first.Add(ctx, article("u1", "T1")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if second.Contains("u1") {
		t.Fatalf("до сигнала второй процесс ещё не видит мутацию")
	}
	// Сигнал broadcaster'а в другом процессе приводит к Refresh.
	if err := second.Refresh(ctx); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !second.Contains("u1") {
		t.Fatalf("после перечитывания мутация должна быть видна")
	}
}
