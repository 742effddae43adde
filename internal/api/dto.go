package api

import (
	"fmt"

	"github.com/ShivamCore/mlserve/internal/inference"
	"github.com/ShivamCore/mlserve/internal/store"
)

// ModelInfoDTO describes one task in the models info response.
type ModelInfoDTO struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Accuracy    string `json:"accuracy"`
	ModelType   string `json:"model_type"`
	Features    int    `json:"features"`
	Loaded      bool   `json:"loaded"`
	CreatedAt   string `json:"created_at"`
}

// ModelsInfoResponse lists every task in catalog order.
type ModelsInfoResponse struct {
	Models []ModelInfoDTO `json:"models"`
	Total  int            `json:"total"`
}

// HistoryResponse is the payload of the history endpoint.
type HistoryResponse struct {
	Task  string               `json:"task"`
	Items []store.HistoryEntry `json:"items"`
	Total int                  `json:"total"`
}

// HealthResponse reports per-task model state and the prediction feed.
type HealthResponse struct {
	Status         string           `json:"status"`
	Models         map[string]bool  `json:"models"`
	StreamClients  int              `json:"stream_clients"`
	LastPrediction *PredictionEvent `json:"last_prediction,omitempty"`
}

// ModelInfoFromDispatcher renders a dispatcher for the models info endpoint.
func ModelInfoFromDispatcher(d *inference.Dispatcher) ModelInfoDTO {
	ep := d.Endpoint()
	return ModelInfoDTO{
		Name:        ep.Task,
		DisplayName: ep.DisplayName,
		Description: ep.Description,
		Kind:        ep.Kind.String(),
		Accuracy:    fmt.Sprintf("%.2f%%", d.Performance()*100),
		ModelType:   d.ModelType(),
		Features:    d.Schema().Len(),
		Loaded:      d.Loaded(),
		CreatedAt:   d.CreatedAt(),
	}
}
