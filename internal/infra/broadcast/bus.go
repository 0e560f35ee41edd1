package broadcast

import "sync"

// Bus — внутрипроцессная шина уведомлений об изменении избранного.
// Подписчики не знают друг о друге; уведомление лишь означает, что состояние
// нужно перечитать.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewBus создаёт шину.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan struct{})}
}

// Subscribe регистрирует наблюдателя. Канал буферизован на один сигнал, повторные
// уведомления до перечитывания схлопываются. Функция отписки идемпотентна.
func (b *Bus) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
	return ch, cancel
}

// Notify сигналит всем подписчикам без блокировки. Отписавшийся наблюдатель
// просто не получает сигнал, это не ошибка.
func (b *Bus) Notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
