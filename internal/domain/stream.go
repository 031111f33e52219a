package domain

import "github.com/google/uuid"

// Stream names
const (
	StreamRescaleRequest = "stream:rescale:request"
	StreamRescaleDone    = "stream:rescale:done"
)

// RescaleRequestEvent - входящее событие на пересчет индикаторов
type RescaleRequestEvent struct {
	RunID      uuid.UUID `json:"run_id"`
	Indicators []string  `json:"indicators" validate:"required,min=1,max=500,dive,required,indicator"`
}

// RescaleDoneEvent - результат пересчета одного индикатора
type RescaleDoneEvent struct {
	RunID        uuid.UUID     `json:"run_id"`
	Indicator    string        `json:"indicator"`
	Observations int           `json:"observations"`
	Kinds        []KindOutcome `json:"kinds,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// StreamMessage - сообщение из Redis Stream
type StreamMessage struct {
	ID   string
	Data string
}
