package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ShivamCore/mlserve/internal/features"
)

// ErrUnavailable marks a task whose model artifact is absent. It is a
// permanent state for the process, not a condition to retry.
var ErrUnavailable = errors.New("model unavailable")

// Bundle is the immutable (predictor, scaler, schema) triple for one task.
type Bundle struct {
	predictor Predictor
	scaler    Scaler
	schema    *features.Schema
	meta      Meta
}

// NewBundle checks that the parts agree on vector width.
func NewBundle(p Predictor, s Scaler, schema *features.Schema, meta Meta) (*Bundle, error) {
	if p == nil {
		return nil, errors.New("predictor is nil")
	}
	if schema == nil {
		return nil, errors.New("schema is nil")
	}
	if n := p.NumFeatures(); n > 0 && n != schema.Len() {
		return nil, fmt.Errorf("%w: model expects %d features, schema %q has %d", ErrFeatureCount, n, schema.Name(), schema.Len())
	}
	if s != nil && s.Width() != schema.Len() {
		return nil, fmt.Errorf("%w: scaler expects %d features, schema %q has %d", ErrFeatureCount, s.Width(), schema.Name(), schema.Len())
	}
	return &Bundle{predictor: p, scaler: s, schema: schema, meta: meta}, nil
}

// Predictor returns the bundle's model.
func (b *Bundle) Predictor() Predictor { return b.predictor }

// Schema returns the bundle's feature schema.
func (b *Bundle) Schema() *features.Schema { return b.schema }

// Meta returns the artifact's display metadata.
func (b *Bundle) Meta() Meta { return b.meta }

// Scale applies the bundle's scaler; a bundle without one is the identity.
func (b *Bundle) Scale(x []float64) ([]float64, error) {
	if b.scaler == nil {
		return x, nil
	}
	return b.scaler.Transform(x)
}

// SchemaFunc resolves a task's schema from the feature names artifact, which
// is nil when no such file exists.
type SchemaFunc func(names []string) (*features.Schema, error)

// LoadBundle reads <task>_model.json, <task>_scaler.json and
// <task>_features.json from dir. A missing model file yields ErrUnavailable;
// the scaler and feature files are optional.
func LoadBundle(dir, task string, schemaFor SchemaFunc) (*Bundle, error) {
	modelPath := filepath.Join(dir, task+"_model.json")
	f, err := openArtifact(modelPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", task, ErrUnavailable)
		}
		return nil, fmt.Errorf("open %s: %w", modelPath, err)
	}
	predictor, meta, err := DecodePredictor(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", modelPath, err)
	}

	var scaler Scaler
	scalerPath := filepath.Join(dir, task+"_scaler.json")
	if sf, err := openArtifact(scalerPath); err == nil {
		scaler, err = DecodeScaler(sf)
		sf.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", scalerPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", scalerPath, err)
	}

	var names []string
	featuresPath := filepath.Join(dir, task+"_features.json")
	if ff, err := openArtifact(featuresPath); err == nil {
		names, err = DecodeFeatureNames(ff)
		ff.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", featuresPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", featuresPath, err)
	}

	schema, err := schemaFor(names)
	if err != nil {
		return nil, fmt.Errorf("%s schema: %w", task, err)
	}

	bundle, err := NewBundle(predictor, scaler, schema, meta)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"task":       task,
		"model_type": meta.ModelType,
		"features":   schema.Len(),
		"scaled":     scaler != nil,
	}).Info("model bundle loaded")
	return bundle, nil
}
