package store

import (
	"encoding/json"
	"time"
)

// HistoryEntry is one recorded prediction.
type HistoryEntry struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID   string    `gorm:"size:36;index" json:"request_id"`
	Task        string    `gorm:"size:32;index" json:"task"`
	Name        string    `gorm:"size:256" json:"name,omitempty"`
	Label       string    `gorm:"size:128" json:"label"`
	Prediction  float64   `json:"prediction"`
	Probability *float64  `json:"probability"`
	Demo        bool      `json:"demo"`
	InputJSON   string    `gorm:"type:text" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// SetInput stores the request record as JSON.
func (e *HistoryEntry) SetInput(input map[string]any) {
	if input == nil {
		e.InputJSON = "{}"
		return
	}
	payload, err := json.Marshal(input)
	if err != nil {
		e.InputJSON = "{}"
		return
	}
	e.InputJSON = string(payload)
}

// Input decodes the stored request record.
func (e HistoryEntry) Input() map[string]any {
	out := map[string]any{}
	if e.InputJSON == "" {
		return out
	}
	_ = json.Unmarshal([]byte(e.InputJSON), &out)
	return out
}

// MarshalJSON exposes the stored input as an object.
func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	type alias HistoryEntry
	return json.Marshal(struct {
		alias
		Input map[string]any `json:"input"`
	}{alias: alias(e), Input: e.Input()})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	type alias HistoryEntry
	var wire struct {
		alias
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = HistoryEntry(wire.alias)
	e.SetInput(wire.Input)
	return nil
}
