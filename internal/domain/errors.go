package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnreachable означает, что ответа от бэкенда не было: таймаут, обрыв сети
	// или открытый circuit breaker.
	ErrBackendUnreachable = errors.New("бэкенд недоступен")
	// ErrPersistence означает отказ локального слоя хранения; мутация считается неудавшейся.
	ErrPersistence = errors.New("ошибка локального хранилища")
	// ErrSuperseded означает, что результат запроса вытеснен более поздним запросом.
	ErrSuperseded = errors.New("запрос вытеснен более новым")
)

// ServerError описывает явный отказ бэкенда: не-2xx ответ с сообщением сервера.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("бэкенд отклонил запрос: статус %d", e.Status)
	}
	return fmt.Sprintf("бэкенд отклонил запрос: статус %d: %s", e.Status, e.Detail)
}

// IsUnreachable сообщает, относится ли ошибка к классу "бэкенд офлайн".
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrBackendUnreachable)
}
