package model

import "fmt"

// Scaler transforms a feature vector before prediction.
type Scaler interface {
	Width() int
	Transform(x []float64) ([]float64, error)
}

// StandardScaler centres by Mean and divides by Scale. A zero scale leaves the
// centred value unchanged.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func (s *StandardScaler) Width() int { return len(s.Mean) }

func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if err := checkLen(x, len(s.Mean)); err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// MinMaxScaler maps each feature from [Min, Max] onto [0, 1].
type MinMaxScaler struct {
	Min []float64
	Max []float64
}

func (s *MinMaxScaler) Width() int { return len(s.Min) }

func (s *MinMaxScaler) Transform(x []float64) ([]float64, error) {
	if err := checkLen(x, len(s.Min)); err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}
	out := make([]float64, len(x))
	for i, v := range x {
		span := s.Max[i] - s.Min[i]
		if span == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - s.Min[i]) / span
	}
	return out, nil
}
