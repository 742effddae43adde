package inference

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ShivamCore/mlserve/internal/features"
	"github.com/ShivamCore/mlserve/internal/model"
	"github.com/ShivamCore/mlserve/internal/scoring"
)

func endpoint(t *testing.T, task string) Endpoint {
	t.Helper()
	for _, ep := range Endpoints() {
		if ep.Task == task {
			return ep
		}
	}
	t.Fatalf("endpoint %s not found", task)
	return Endpoint{}
}

func schemaOf(t *testing.T, ep Endpoint) *features.Schema {
	t.Helper()
	schema, err := ep.Schema(nil)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return schema
}

func loadedDispatcher(t *testing.T, task string, p model.Predictor) *Dispatcher {
	t.Helper()
	ep := endpoint(t, task)
	bundle, err := model.NewBundle(p, nil, schemaOf(t, ep), model.Meta{})
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	d, err := NewDispatcher(ep, bundle)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return d
}

func demoDispatcher(t *testing.T, task string) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(endpoint(t, task), nil)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return d
}

func constantRegressor(t *testing.T, task string, value float64) model.Predictor {
	t.Helper()
	width := schemaOf(t, endpoint(t, task)).Len()
	return &model.LinearRegression{Coefficients: make([]float64, width), Intercept: value}
}

func constantClassifier(t *testing.T, task string, logit float64) model.Predictor {
	t.Helper()
	width := schemaOf(t, endpoint(t, task)).Len()
	return &model.LogisticRegression{Coefficients: make([]float64, width), Intercept: logit}
}

type panicPredictor struct{}

func (panicPredictor) NumFeatures() int { return 0 }

func (panicPredictor) Predict([]float64) (float64, error) { panic("boom") }

func TestRTTPredictionIsNeverNegative(t *testing.T) {
	for _, raw := range []float64{-120.5, -0.001, 0, 33.3} {
		d := loadedDispatcher(t, features.TaskRTT, constantRegressor(t, features.TaskRTT, raw))
		result := d.Dispatch(features.Record{})
		if !result.Success {
			t.Fatalf("dispatch failed: %s", result.Error)
		}
		if result.Prediction < 0 {
			t.Fatalf("raw %v produced negative rtt %v", raw, result.Prediction)
		}
		if raw > 0 && result.Prediction != raw {
			t.Fatalf("expected %v got %v", raw, result.Prediction)
		}
		if result.Probability == nil || *result.Probability != 0.9989 {
			t.Fatalf("expected performance as confidence, got %v", result.Probability)
		}
	}
}

func TestDemoAndModelResultsShareFields(t *testing.T) {
	loaded := map[string]model.Predictor{
		features.TaskRTT:    constantRegressor(t, features.TaskRTT, 10),
		features.TaskLogin:  constantClassifier(t, features.TaskLogin, 2),
		features.TaskAttack: constantClassifier(t, features.TaskAttack, -2),
		features.TaskLaptop: constantRegressor(t, features.TaskLaptop, 45000),
		features.TaskLoan:   constantClassifier(t, features.TaskLoan, 3),
	}
	for task, predictor := range loaded {
		t.Run(task, func(t *testing.T) {
			modelResult := loadedDispatcher(t, task, predictor).Dispatch(features.Record{})
			demo := demoDispatcher(t, task).Dispatch(features.Record{})
			if !modelResult.Success || !demo.Success {
				t.Fatalf("expected success, got %q / %q", modelResult.Error, demo.Error)
			}
			if modelResult.Demo || !demo.Demo {
				t.Fatalf("demo flags wrong: real=%v demo=%v", modelResult.Demo, demo.Demo)
			}
			realKeys := jsonKeys(t, modelResult)
			demoKeys := jsonKeys(t, demo)
			if strings.Join(realKeys, ",") != strings.Join(demoKeys, ",") {
				t.Fatalf("field sets differ:\n model %v\n demo  %v", realKeys, demoKeys)
			}
		})
	}
}

func TestDemoConstants(t *testing.T) {
	rtt := demoDispatcher(t, features.TaskRTT).Dispatch(features.Record{})
	if rtt.Prediction != 45.67 || rtt.ModelPerformance != 0.9989 {
		t.Fatalf("unexpected rtt demo %+v", rtt)
	}
	login := demoDispatcher(t, features.TaskLogin).Dispatch(features.Record{})
	if login.Prediction != 1 || login.Probability == nil || *login.Probability != 0.85 {
		t.Fatalf("unexpected login demo %+v", login)
	}
	attack := demoDispatcher(t, features.TaskAttack).Dispatch(features.Record{})
	if attack.Prediction != 0 || attack.Label != "Normal" || attack.ModelType != "GradientBoosting" {
		t.Fatalf("unexpected attack demo %+v", attack)
	}
}

func TestLoanFallbackUsesRules(t *testing.T) {
	d := demoDispatcher(t, features.TaskLoan)
	result := d.Dispatch(features.Record{
		"credit_history":     "1",
		"applicant_income":   "60000",
		"coapplicant_income": "0",
		"loan_amount":        "150000",
		"loan_amount_term":   "120",
		"employment_status":  "Employed",
		"education":          "Graduate",
		"dependents":         "1",
		"property_area":      "Urban",
		"age":                "30",
	})
	if !result.Success {
		t.Fatalf("dispatch failed: %s", result.Error)
	}
	if result.Label != scoring.LoanApproved || result.Prediction != 1 {
		t.Fatalf("expected approval, got %+v", result)
	}
	if result.Details["score"] != 14 || result.Details["decision_source"] != "rules" {
		t.Fatalf("unexpected details %v", result.Details)
	}
	if !result.Demo {
		t.Fatalf("rule-based result should be flagged demo")
	}

	again := d.Dispatch(features.Record{
		"credit_history": "1", "applicant_income": "60000", "coapplicant_income": "0",
		"loan_amount": "150000", "loan_amount_term": "120", "employment_status": "Employed",
		"education": "Graduate", "dependents": "1", "property_area": "Urban", "age": "30",
	})
	if again.Details["score"] != result.Details["score"] || again.Label != result.Label {
		t.Fatalf("rule scorer not deterministic")
	}
}

func TestLoanModelPath(t *testing.T) {
	d := loadedDispatcher(t, features.TaskLoan, constantClassifier(t, features.TaskLoan, -3))
	result := d.Dispatch(features.Record{"gender": "Male"})
	if !result.Success {
		t.Fatalf("dispatch failed: %s", result.Error)
	}
	if result.Label != scoring.LoanRejected || result.Prediction != 0 {
		t.Fatalf("expected rejection got %+v", result)
	}
	if result.Probability == nil || *result.Probability < 0.9 {
		t.Fatalf("expected probability of predicted class, got %v", result.Probability)
	}
	if result.Details["decision_source"] != "model" {
		t.Fatalf("unexpected details %v", result.Details)
	}
}

func TestLaptopUnknownGraphicsCardDoesNotFail(t *testing.T) {
	d := loadedDispatcher(t, features.TaskLaptop, constantRegressor(t, features.TaskLaptop, 123456.789))
	result := d.Dispatch(features.Record{"graphics_card": "16", "brand": "Unknown"})
	if !result.Success {
		t.Fatalf("dispatch failed: %s", result.Error)
	}
	if !strings.HasPrefix(result.Label, "₹") || !strings.Contains(result.Label, "123") {
		t.Fatalf("unexpected price label %q", result.Label)
	}
}

func TestInputErrorIsReported(t *testing.T) {
	d := loadedDispatcher(t, features.TaskLaptop, constantRegressor(t, features.TaskLaptop, 1))
	result := d.Dispatch(features.Record{"ram_gb": "sixteen"})
	if result.Success {
		t.Fatalf("expected failure")
	}
	if !result.IsInputError() {
		t.Fatalf("expected input error flag")
	}
	keys := jsonKeys(t, result)
	if strings.Join(keys, ",") != "error,success" {
		t.Fatalf("failure should only carry success and error, got %v", keys)
	}
}

func TestPredictorFailuresDoNotPanic(t *testing.T) {
	ep := endpoint(t, features.TaskRTT)
	bundle, err := model.NewBundle(panicPredictor{}, nil, schemaOf(t, ep), model.Meta{})
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	d, err := NewDispatcher(ep, bundle)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	result := d.Dispatch(features.Record{})
	if result.Success || result.IsInputError() {
		t.Fatalf("expected non-input failure, got %+v", result)
	}
	next := loadedDispatcher(t, features.TaskRTT, constantRegressor(t, features.TaskRTT, 5)).Dispatch(features.Record{})
	if !next.Success {
		t.Fatalf("independent request should succeed")
	}
}

func TestDispatchVectorLengthMismatch(t *testing.T) {
	d := loadedDispatcher(t, features.TaskLogin, constantClassifier(t, features.TaskLogin, 1))
	result := d.DispatchVector([]float64{1, 2})
	if result.Success || result.IsInputError() {
		t.Fatalf("expected length failure, got %+v", result)
	}
}

func TestMetaOverridesEndpointDefaults(t *testing.T) {
	ep := endpoint(t, features.TaskAttack)
	schema := schemaOf(t, ep)
	bundle, err := model.NewBundle(constantClassifier(t, features.TaskAttack, 1), nil, schema, model.Meta{
		ModelType: "XGBoost", Performance: 0.97, CreatedAt: "2025-02-01T00:00:00",
	})
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	d, err := NewDispatcher(ep, bundle)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	d.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	result := d.Dispatch(features.Record{})
	if result.ModelType != "XGBoost" || result.ModelPerformance != 0.97 || d.CreatedAt() != "2025-02-01T00:00:00" {
		t.Fatalf("meta not applied: %+v", result)
	}
	if !result.Timestamp.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", result.Timestamp)
	}
}

func TestLoadRegistryWithoutArtifacts(t *testing.T) {
	reg, err := LoadRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if len(reg.All()) != len(Endpoints()) {
		t.Fatalf("expected %d dispatchers got %d", len(Endpoints()), len(reg.All()))
	}
	for _, d := range reg.All() {
		if d.Loaded() {
			t.Fatalf("%s should be unavailable", d.Endpoint().Task)
		}
	}
	if _, ok := reg.Get("unknown"); ok {
		t.Fatalf("unexpected dispatcher for unknown task")
	}
}

func TestLoadRegistryWithArtifact(t *testing.T) {
	dir := t.TempDir()
	art := map[string]any{
		"type":         model.TypeLinearRegression,
		"coefficients": []float64{1, 1},
		"intercept":    -100,
	}
	writeFile(t, filepath.Join(dir, "rtt_model.json"), art)
	writeFile(t, filepath.Join(dir, "rtt_features.json"), []string{"rtt_log", "hour"})

	reg, err := LoadRegistry(dir)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	d, ok := reg.Get(features.TaskRTT)
	if !ok || !d.Loaded() {
		t.Fatalf("rtt should be loaded")
	}
	result := d.Dispatch(features.Record{"rtt_log": 3, "hour": 4})
	if !result.Success || result.Prediction != 0 {
		t.Fatalf("expected clamped 0, got %+v", result)
	}
}

func jsonKeys(t *testing.T, r Result) []string {
	t.Helper()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoanFallbackEncodedRecord(t *testing.T) {
	result := demoDispatcher(t, features.TaskLoan).Dispatch(features.Record{
		"credit_history": 1, "applicant_income": 60000, "coapplicant_income": 0,
		"loan_amount": 150000, "loan_amount_term": 120, "employment": 1,
		"education": 1, "dependents": 1, "property_area": 2, "age": 30,
	})
	if !result.Success || result.Label != scoring.LoanApproved {
		t.Fatalf("expected approval, got %+v", result)
	}
	if result.Details["score"] != 14 {
		t.Fatalf("expected score 14, got %v", result.Details["score"])
	}
}
