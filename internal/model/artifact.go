package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Model artifact type identifiers.
const (
	TypeLinearRegression           = "linear_regression"
	TypeLogisticRegression         = "logistic_regression"
	TypeDecisionTreeRegressor      = "decision_tree_regressor"
	TypeDecisionTreeClassifier     = "decision_tree_classifier"
	TypeRandomForestRegressor      = "random_forest_regressor"
	TypeRandomForestClassifier     = "random_forest_classifier"
	TypeGradientBoostingClassifier = "gradient_boosting_classifier"
)

// Meta carries the display metadata stored alongside a model artifact.
type Meta struct {
	ModelType   string  `json:"model_type"`
	Performance float64 `json:"performance"`
	CreatedAt   string  `json:"created_at"`
}

type modelArtifact struct {
	Type         string    `json:"type"`
	NFeatures    int       `json:"n_features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Tree         *Tree     `json:"tree"`
	Trees        []Tree    `json:"trees"`
	Init         float64   `json:"init"`
	LearningRate float64   `json:"learning_rate"`
	Meta
}

type scalerArtifact struct {
	Type  string    `json:"type"`
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
	Min   []float64 `json:"min"`
	Max   []float64 `json:"max"`
}

// DecodePredictor reads a JSON model artifact.
func DecodePredictor(r io.Reader) (Predictor, Meta, error) {
	var art modelArtifact
	if err := json.NewDecoder(r).Decode(&art); err != nil {
		return nil, Meta{}, fmt.Errorf("decode model: %w", err)
	}
	p, err := art.build()
	if err != nil {
		return nil, Meta{}, err
	}
	return p, art.Meta, nil
}

func (a modelArtifact) build() (Predictor, error) {
	kind := strings.ToLower(strings.TrimSpace(a.Type))
	switch kind {
	case TypeLinearRegression, TypeLogisticRegression:
		if len(a.Coefficients) == 0 {
			return nil, fmt.Errorf("%s: coefficients missing", kind)
		}
		if a.NFeatures > 0 && a.NFeatures != len(a.Coefficients) {
			return nil, fmt.Errorf("%s: n_features %d does not match %d coefficients", kind, a.NFeatures, len(a.Coefficients))
		}
		coef := append([]float64(nil), a.Coefficients...)
		if kind == TypeLinearRegression {
			return &LinearRegression{Coefficients: coef, Intercept: a.Intercept}, nil
		}
		return &LogisticRegression{Coefficients: coef, Intercept: a.Intercept}, nil
	case TypeDecisionTreeRegressor, TypeDecisionTreeClassifier, TypeRandomForestRegressor,
		TypeRandomForestClassifier, TypeGradientBoostingClassifier:
		trees := a.Trees
		if a.Tree != nil {
			trees = append([]Tree{*a.Tree}, trees...)
		}
		if len(trees) == 0 {
			return nil, fmt.Errorf("%s: no trees", kind)
		}
		highest := -1
		for i := range trees {
			if err := trees[i].validate(); err != nil {
				return nil, fmt.Errorf("%s: tree %d: %w", kind, i, err)
			}
			if f := trees[i].maxFeature(); f > highest {
				highest = f
			}
		}
		if a.NFeatures > 0 && highest >= a.NFeatures {
			return nil, fmt.Errorf("%s: split on feature %d exceeds n_features %d", kind, highest, a.NFeatures)
		}
		switch kind {
		case TypeDecisionTreeRegressor, TypeRandomForestRegressor:
			return &TreeEnsembleRegressor{Trees: trees, nFeatures: a.NFeatures}, nil
		case TypeGradientBoostingClassifier:
			lr := a.LearningRate
			if lr <= 0 {
				lr = 0.1
			}
			return &GradientBoostingClassifier{Init: a.Init, LearningRate: lr, Trees: trees, nFeatures: a.NFeatures}, nil
		default:
			return &TreeEnsembleClassifier{Trees: trees, nFeatures: a.NFeatures}, nil
		}
	case "":
		return nil, errors.New("model type missing")
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.Type)
	}
}

// DecodeScaler reads a JSON scaler artifact.
func DecodeScaler(r io.Reader) (Scaler, error) {
	var art scalerArtifact
	if err := json.NewDecoder(r).Decode(&art); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(art.Type)) {
	case "", "standard":
		if len(art.Mean) == 0 || len(art.Mean) != len(art.Scale) {
			return nil, fmt.Errorf("standard scaler: mean/scale length %d/%d", len(art.Mean), len(art.Scale))
		}
		return &StandardScaler{Mean: art.Mean, Scale: art.Scale}, nil
	case "minmax":
		if len(art.Min) == 0 || len(art.Min) != len(art.Max) {
			return nil, fmt.Errorf("minmax scaler: min/max length %d/%d", len(art.Min), len(art.Max))
		}
		return &MinMaxScaler{Min: art.Min, Max: art.Max}, nil
	default:
		return nil, fmt.Errorf("unsupported scaler type %q", art.Type)
	}
}

// DecodeFeatureNames reads a JSON array of feature names.
func DecodeFeatureNames(r io.Reader) ([]string, error) {
	var names []string
	if err := json.NewDecoder(r).Decode(&names); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return names, nil
}

func openArtifact(path string) (*os.File, error) {
	return os.Open(filepath.Clean(path))
}
