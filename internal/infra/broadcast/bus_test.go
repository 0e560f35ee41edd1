package broadcast

import "testing"

func TestBusNotifyReachesSubscribers(t *testing.T) {
	bus := NewBus()
	first, cancelFirst := bus.Subscribe()
	second, cancelSecond := bus.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	bus.Notify()

	select {
	case <-first:
	default:
		t.Fatalf("первый подписчик не получил сигнал")
	}
	select {
	case <-second:
	default:
		t.Fatalf("второй подписчик не получил сигнал")
	}
}

func TestBusCoalescesNotifications(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Notify()
	bus.Notify()
	bus.Notify()

	<-ch
	select {
	case <-ch:
		t.Fatalf("повторные уведомления должны схлопываться в один сигнал")
	default:
	}
}

func TestBusNotifyAfterCancelIsNoop(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()
	cancel() // повторная отписка безопасна

	bus.Notify()

	select {
	case <-ch:
		t.Fatalf("отписавшийся наблюдатель не должен получать сигналы")
	default:
	}
}

func TestMessageRoundTripAndOriginFilter(t *testing.T) {
	payload, err := encodeMessage(message{Origin: "proc-1", Key: "newshub:favorites"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	decoded, err := decodeMessage(payload)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if decoded.Origin != "proc-1" || decoded.Key != "newshub:favorites" {
		t.Fatalf("сообщение разобрано неверно: %+v", decoded)
	}
	if _, err := decodeMessage([]byte("not json")); err == nil {
		t.Fatalf("ожидали ошибку на повреждённом сообщении")
	}
}
