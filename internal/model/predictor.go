package model

import (
	"errors"
	"fmt"
	"math"
)

// Predictor produces one output for one feature vector. Classifiers return the
// class label as a float.
type Predictor interface {
	// NumFeatures is the expected vector length, or 0 when the artifact did not declare it.
	NumFeatures() int
	Predict(x []float64) (float64, error)
}

// ProbabilityPredictor is implemented by binary classifiers that expose class probabilities.
type ProbabilityPredictor interface {
	Predictor
	// PredictProba returns [P(class 0), P(class 1)].
	PredictProba(x []float64) ([]float64, error)
}

// ErrFeatureCount is returned when a vector does not match the model's input width.
var ErrFeatureCount = errors.New("feature count mismatch")

func checkLen(x []float64, n int) error {
	if n > 0 && len(x) != n {
		return fmt.Errorf("%w: model expects %d features, got %d", ErrFeatureCount, n, len(x))
	}
	return nil
}

// LinearRegression is an ordinary least squares model.
type LinearRegression struct {
	Coefficients []float64
	Intercept    float64
}

func (m *LinearRegression) NumFeatures() int { return len(m.Coefficients) }

func (m *LinearRegression) Predict(x []float64) (float64, error) {
	if err := checkLen(x, len(m.Coefficients)); err != nil {
		return 0, err
	}
	return dot(m.Coefficients, x) + m.Intercept, nil
}

// LogisticRegression is a binary logistic classifier.
type LogisticRegression struct {
	Coefficients []float64
	Intercept    float64
}

func (m *LogisticRegression) NumFeatures() int { return len(m.Coefficients) }

func (m *LogisticRegression) PredictProba(x []float64) ([]float64, error) {
	if err := checkLen(x, len(m.Coefficients)); err != nil {
		return nil, err
	}
	p := sigmoid(dot(m.Coefficients, x) + m.Intercept)
	return []float64{1 - p, p}, nil
}

func (m *LogisticRegression) Predict(x []float64) (float64, error) {
	return labelFromProba(m.PredictProba(x))
}

// TreeEnsembleRegressor averages the leaf values of its trees. A single tree is
// an ensemble of one.
type TreeEnsembleRegressor struct {
	Trees     []Tree
	nFeatures int
}

func (m *TreeEnsembleRegressor) NumFeatures() int { return m.nFeatures }

func (m *TreeEnsembleRegressor) Predict(x []float64) (float64, error) {
	if err := checkLen(x, m.nFeatures); err != nil {
		return 0, err
	}
	return meanLeaf(m.Trees, x)
}

// TreeEnsembleClassifier averages per-tree P(class 1) leaf values.
type TreeEnsembleClassifier struct {
	Trees     []Tree
	nFeatures int
}

func (m *TreeEnsembleClassifier) NumFeatures() int { return m.nFeatures }

func (m *TreeEnsembleClassifier) PredictProba(x []float64) ([]float64, error) {
	if err := checkLen(x, m.nFeatures); err != nil {
		return nil, err
	}
	p, err := meanLeaf(m.Trees, x)
	if err != nil {
		return nil, err
	}
	p = clamp01(p)
	return []float64{1 - p, p}, nil
}

func (m *TreeEnsembleClassifier) Predict(x []float64) (float64, error) {
	return labelFromProba(m.PredictProba(x))
}

// GradientBoostingClassifier sums shrunken tree outputs on top of an initial
// log-odds value.
type GradientBoostingClassifier struct {
	Init         float64
	LearningRate float64
	Trees        []Tree
	nFeatures    int
}

func (m *GradientBoostingClassifier) NumFeatures() int { return m.nFeatures }

func (m *GradientBoostingClassifier) PredictProba(x []float64) ([]float64, error) {
	if err := checkLen(x, m.nFeatures); err != nil {
		return nil, err
	}
	raw := m.Init
	for i := range m.Trees {
		v, err := m.Trees[i].Eval(x)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		raw += m.LearningRate * v
	}
	p := sigmoid(raw)
	return []float64{1 - p, p}, nil
}

func (m *GradientBoostingClassifier) Predict(x []float64) (float64, error) {
	return labelFromProba(m.PredictProba(x))
}

func meanLeaf(trees []Tree, x []float64) (float64, error) {
	if len(trees) == 0 {
		return 0, errors.New("ensemble has no trees")
	}
	var sum float64
	for i := range trees {
		v, err := trees[i].Eval(x)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(trees)), nil
}

func labelFromProba(proba []float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if proba[1] >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
