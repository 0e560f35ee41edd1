package broadcast

import (
	"encoding/json"
	"fmt"
)

// message — полезная нагрузка межпроцессного уведомления. Origin позволяет
// процессу-источнику отбросить собственное сообщение: его наблюдатели уже
// уведомлены через внутреннюю шину.
type message struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

func encodeMessage(m message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return payload, nil
}

func decodeMessage(data []byte) (message, error) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return message{}, fmt.Errorf("decode notification: %w", err)
	}
	return m, nil
}
