package usecase

import (
	"encoding/json"

	"tenant-portal/internal/realtime/domain/model"
)

// rawFrame is a message that is already encoded
type rawFrame []byte

func encode(message interface{}) ([]byte, error) {
	switch m := message.(type) {
	case rawFrame:
		return m, nil
	case json.RawMessage:
		return m, nil
	case model.Message:
		return json.Marshal(m.Envelope())
	case model.Envelope:
		return json.Marshal(m)
	}
	return json.Marshal(message)
}
