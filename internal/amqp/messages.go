package amqp

import (
	"encoding/json"
	"time"
)

// Message types carried on the job queue. The worker dispatches on Type.
const (
	TypeReanalyzeMonth = "reanalyze_month"
	TypeExportMonth    = "export_month"
)

// Envelope wraps every queued job with its type and enqueue time.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// ReanalyzeMonthMessage asks the worker to re-run categorization for every
// transaction in a month. SkipCache forces fresh AI evaluations.
type ReanalyzeMonthMessage struct {
	Month     string `json:"month"`
	SkipCache bool   `json:"skip_cache"`
}

// ExportMonthMessage asks the worker to push a month's transactions to the
// configured Google Sheet.
type ExportMonthMessage struct {
	Month string `json:"month"`
}

func NewEnvelope(msgType string, payload any) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   body,
	}, nil
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
