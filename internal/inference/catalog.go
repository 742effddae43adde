package inference

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ShivamCore/mlserve/internal/features"
	"github.com/ShivamCore/mlserve/internal/model"
	"github.com/ShivamCore/mlserve/internal/scoring"
)

// Kind distinguishes regression endpoints from binary classifiers.
type Kind int

const (
	Regression Kind = iota
	Classification
)

func (k Kind) String() string {
	if k == Classification {
		return "classification"
	}
	return "regression"
}

// Outcome is what a fallback contributes to a Result.
type Outcome struct {
	Prediction  float64
	Probability *float64
	Label       string
	Details     map[string]any
}

// FallbackFunc produces the UNAVAILABLE-state outcome for an already built vector.
type FallbackFunc func(schema *features.Schema, vector []float64) (Outcome, error)

// Endpoint describes one prediction task and its defaults.
type Endpoint struct {
	Task        string
	DisplayName string
	Description string
	Kind        Kind
	// ModelType and Performance are used when the artifact does not carry them.
	ModelType   string
	Performance float64
	CreatedAt   string
	// Floor clamps predictions from below when set.
	Floor *float64
	// PerformanceAsConfidence reports the static performance as the probability
	// of a regression prediction.
	PerformanceAsConfidence bool
	Schema                  model.SchemaFunc
	Label                   func(prediction float64) string
	Fallback                FallbackFunc
	// Details is attached to model-produced results.
	Details func(prediction float64) map[string]any
}

const defaultCreatedAt = "2024-01-01T00:00:00"

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders a laptop price the way the storefront displays it.
func FormatPrice(v float64) string {
	return pricePrinter.Sprintf("₹%.2f", v)
}

func networkSchema(task string) model.SchemaFunc {
	return func(names []string) (*features.Schema, error) {
		return features.NetworkSchema(task, names)
	}
}

func fixedSchema(schema *features.Schema) model.SchemaFunc {
	return func([]string) (*features.Schema, error) {
		return schema, nil
	}
}

func canned(prediction float64, probability *float64, label func(float64) string) FallbackFunc {
	return func(*features.Schema, []float64) (Outcome, error) {
		return Outcome{Prediction: prediction, Probability: probability, Label: label(prediction)}, nil
	}
}

func binaryLabel(positive, negative string) func(float64) string {
	return func(v float64) string {
		if v == 1 {
			return positive
		}
		return negative
	}
}

func rttLabel(v float64) string {
	return fmt.Sprintf("%.2f ms", v)
}

func loanRules(schema *features.Schema, vector []float64) (Outcome, error) {
	app, err := scoring.LoanApplicationFromVector(schema.Names(), vector)
	if err != nil {
		return Outcome{}, err
	}
	score := scoring.ScoreLoan(app)
	prediction := 0.0
	if score.Approved {
		prediction = 1
	}
	return Outcome{
		Prediction: prediction,
		Label:      score.Decision,
		Details: map[string]any{
			"decision_source": "rules",
			"score":           score.Score,
			"threshold":       scoring.LoanApprovalThreshold,
		},
	}, nil
}

// Endpoints returns the catalog of prediction tasks in display order.
func Endpoints() []Endpoint {
	zero := 0.0
	loanLabel := binaryLabel(scoring.LoanApproved, scoring.LoanRejected)
	return []Endpoint{
		{
			Task:                    features.TaskRTT,
			DisplayName:             "Round-Trip Time Prediction",
			Description:             "Predicts login round-trip time in milliseconds from network features.",
			Kind:                    Regression,
			ModelType:               "RandomForest Regressor",
			Performance:             0.9989,
			CreatedAt:               defaultCreatedAt,
			Floor:                   &zero,
			PerformanceAsConfidence: true,
			Schema:                  networkSchema(features.TaskRTT),
			Label:                   rttLabel,
			Fallback:                canned(45.67, nil, rttLabel),
		},
		{
			Task:        features.TaskLogin,
			DisplayName: "Login Success Prediction",
			Description: "Predicts whether a login attempt succeeds.",
			Kind:        Classification,
			ModelType:   "RandomForest Classifier",
			Performance: 0.8420,
			CreatedAt:   defaultCreatedAt,
			Schema:      networkSchema(features.TaskLogin),
			Label:       binaryLabel("Success", "Failure"),
			Fallback:    canned(1, floatPtr(0.85), binaryLabel("Success", "Failure")),
		},
		{
			Task:        features.TaskAttack,
			DisplayName: "Attack Detection",
			Description: "Flags login traffic that looks like an attack.",
			Kind:        Classification,
			ModelType:   "GradientBoosting",
			Performance: 0.9200,
			CreatedAt:   defaultCreatedAt,
			Schema:      networkSchema(features.TaskAttack),
			Label:       binaryLabel("Attack", "Normal"),
			Fallback:    canned(0, floatPtr(0.92), binaryLabel("Attack", "Normal")),
		},
		{
			Task:        features.TaskLaptop,
			DisplayName: "Laptop Price Prediction",
			Description: "Estimates a laptop's price in rupees from its specification.",
			Kind:        Regression,
			ModelType:   "RandomForest Regressor",
			Performance: 0.8900,
			CreatedAt:   defaultCreatedAt,
			Floor:       &zero,
			Schema:      fixedSchema(features.LaptopSchema()),
			Label:       FormatPrice,
			Fallback:    canned(52990, nil, FormatPrice),
		},
		{
			Task:        features.TaskLoan,
			DisplayName: "Loan Approval",
			Description: "Decides loan approval from the applicant profile.",
			Kind:        Classification,
			ModelType:   "Logistic Regression",
			Performance: 0.8100,
			CreatedAt:   defaultCreatedAt,
			Schema:      fixedSchema(features.LoanSchema()),
			Label:       loanLabel,
			Fallback:    loanRules,
			Details: func(float64) map[string]any {
				return map[string]any{"decision_source": "model"}
			},
		},
	}
}
