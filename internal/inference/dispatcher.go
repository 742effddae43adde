package inference

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ShivamCore/mlserve/internal/features"
	"github.com/ShivamCore/mlserve/internal/model"
	"github.com/ShivamCore/mlserve/internal/util"
)

// Dispatcher serves one endpoint. Whether it is LOADED is fixed at
// construction; it holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	endpoint Endpoint
	bundle   *model.Bundle
	schema   *features.Schema
	now      func() time.Time
}

// NewDispatcher binds an endpoint to its bundle. A nil bundle puts the
// dispatcher permanently in the UNAVAILABLE state.
func NewDispatcher(ep Endpoint, bundle *model.Bundle) (*Dispatcher, error) {
	if ep.Task == "" {
		return nil, errors.New("endpoint task required")
	}
	if ep.Fallback == nil {
		return nil, fmt.Errorf("%s: fallback required", ep.Task)
	}
	d := &Dispatcher{endpoint: ep, bundle: bundle, now: time.Now}
	if bundle != nil {
		d.schema = bundle.Schema()
	} else {
		if ep.Schema == nil {
			return nil, fmt.Errorf("%s: schema required", ep.Task)
		}
		schema, err := ep.Schema(nil)
		if err != nil {
			return nil, fmt.Errorf("%s schema: %w", ep.Task, err)
		}
		d.schema = schema
	}
	return d, nil
}

// Loaded reports whether a real model backs the dispatcher.
func (d *Dispatcher) Loaded() bool {
	return d.bundle != nil
}

// Endpoint returns the endpoint definition.
func (d *Dispatcher) Endpoint() Endpoint {
	return d.endpoint
}

// Schema returns the schema requests are built against.
func (d *Dispatcher) Schema() *features.Schema {
	return d.schema
}

// ModelType returns the artifact's model type or the endpoint default.
func (d *Dispatcher) ModelType() string {
	if d.bundle != nil {
		if mt := strings.TrimSpace(d.bundle.Meta().ModelType); mt != "" {
			return mt
		}
	}
	return d.endpoint.ModelType
}

// Performance returns the artifact's static score or the endpoint default.
func (d *Dispatcher) Performance() float64 {
	if d.bundle != nil && d.bundle.Meta().Performance > 0 {
		return d.bundle.Meta().Performance
	}
	return d.endpoint.Performance
}

// CreatedAt returns the artifact's creation stamp or the endpoint default.
func (d *Dispatcher) CreatedAt() string {
	if d.bundle != nil {
		if created := strings.TrimSpace(d.bundle.Meta().CreatedAt); created != "" {
			return created
		}
	}
	return d.endpoint.CreatedAt
}

// Dispatch builds the feature vector from rec and predicts.
func (d *Dispatcher) Dispatch(rec features.Record) Result {
	timer := util.StartTimer()
	vector, err := features.Build(d.schema, rec)
	if err != nil {
		return d.failure(err)
	}
	return d.run(timer, vector)
}

// DispatchVector predicts for a vector already in schema order.
func (d *Dispatcher) DispatchVector(vector []float64) Result {
	timer := util.StartTimer()
	if len(vector) != d.schema.Len() {
		return d.failure(fmt.Errorf("%w: expected %d features, got %d", model.ErrFeatureCount, d.schema.Len(), len(vector)))
	}
	return d.run(timer, vector)
}

func (d *Dispatcher) run(timer util.Timer, vector []float64) Result {
	var (
		outcome Outcome
		err     error
		demo    bool
	)
	if d.bundle != nil {
		outcome, err = d.predict(vector)
	} else {
		demo = true
		outcome, err = d.endpoint.Fallback(d.schema, vector)
	}
	if err != nil {
		return d.failure(err)
	}
	return Result{
		Success:          true,
		Prediction:       outcome.Prediction,
		Probability:      outcome.Probability,
		Label:            outcome.Label,
		ModelPerformance: d.Performance(),
		ModelType:        d.ModelType(),
		ResponseTime:     fmt.Sprintf("%dms", timer.ElapsedMs()),
		Timestamp:        d.now(),
		Demo:             demo,
		Details:          outcome.Details,
	}
}

func (d *Dispatcher) predict(vector []float64) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s model panicked: %v", d.endpoint.Task, r)
		}
	}()

	scaled, err := d.bundle.Scale(vector)
	if err != nil {
		return Outcome{}, err
	}
	predictor := d.bundle.Predictor()
	prediction, err := predictor.Predict(scaled)
	if err != nil {
		return Outcome{}, err
	}
	if math.IsNaN(prediction) || math.IsInf(prediction, 0) {
		return Outcome{}, fmt.Errorf("%s model returned non-finite prediction", d.endpoint.Task)
	}

	var probability *float64
	switch d.endpoint.Kind {
	case Classification:
		prediction = math.Round(prediction)
		if pp, ok := predictor.(model.ProbabilityPredictor); ok {
			proba, err := pp.PredictProba(scaled)
			if err != nil {
				return Outcome{}, err
			}
			idx := int(prediction)
			if idx < 0 || idx >= len(proba) {
				return Outcome{}, fmt.Errorf("%s model predicted class %d outside %d probabilities", d.endpoint.Task, idx, len(proba))
			}
			probability = floatPtr(proba[idx])
		}
	default:
		if d.endpoint.Floor != nil && prediction < *d.endpoint.Floor {
			prediction = *d.endpoint.Floor
		}
		if d.endpoint.PerformanceAsConfidence {
			probability = floatPtr(d.Performance())
		}
	}

	outcome = Outcome{Prediction: prediction, Probability: probability}
	if d.endpoint.Label != nil {
		outcome.Label = d.endpoint.Label(prediction)
	}
	if d.endpoint.Details != nil {
		outcome.Details = d.endpoint.Details(prediction)
	}
	return outcome, nil
}

func (d *Dispatcher) failure(err error) Result {
	return Result{
		Success:    false,
		Error:      err.Error(),
		Timestamp:  d.now(),
		inputError: features.IsInputError(err),
	}
}
