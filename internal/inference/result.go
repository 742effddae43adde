package inference

import (
	"encoding/json"
	"time"
)

// Result is the response of every prediction path. A successful result has
// the same keys whether a model or the fallback produced it; only Demo differs.
type Result struct {
	Success          bool           `json:"success"`
	Prediction       float64        `json:"prediction"`
	Probability      *float64       `json:"probability"`
	Label            string         `json:"label"`
	ModelPerformance float64        `json:"model_performance"`
	ModelType        string         `json:"model_type"`
	ResponseTime     string         `json:"response_time"`
	Timestamp        time.Time      `json:"timestamp"`
	Demo             bool           `json:"demo"`
	Details          map[string]any `json:"details"`
	Error            string         `json:"error,omitempty"`

	inputError bool
}

// IsInputError reports whether the failure came from an uncoercible field.
func (r Result) IsInputError() bool {
	return r.inputError
}

// MarshalJSON reduces failed results to success and error.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{Success: false, Error: r.Error})
	}
	type alias Result
	return json.Marshal(alias(r))
}

func floatPtr(v float64) *float64 {
	return &v
}
