package scoring

import "fmt"

// LoanApprovalThreshold is the minimum rule score for approval.
const LoanApprovalThreshold = 6

// Loan decision labels.
const (
	LoanApproved = "Loan Approved!"
	LoanRejected = "Loan Rejected!"
)

// LoanApplication holds the encoded loan features. Binary fields use 1 for
// the favourable value; PropertyArea is 2 urban, 1 semiurban, 0 rural.
type LoanApplication struct {
	Age               float64
	Gender            float64
	MaritalStatus     float64
	Dependents        float64
	Education         float64
	Employment        float64
	ApplicantIncome   float64
	CoapplicantIncome float64
	LoanAmount        float64
	LoanAmountTerm    float64
	CreditHistory     float64
	PropertyArea      float64
}

// LoanScore is the outcome of the rule-based scorer.
type LoanScore struct {
	Score    int    `json:"score"`
	Approved bool   `json:"approved"`
	Decision string `json:"decision"`
}

// LoanApplicationFromVector reads an application out of a vector whose slot
// names are given in names. Names outside the loan fields are ignored.
func LoanApplicationFromVector(names []string, vector []float64) (LoanApplication, error) {
	if len(names) != len(vector) {
		return LoanApplication{}, fmt.Errorf("loan vector has %d values for %d names", len(vector), len(names))
	}
	var app LoanApplication
	fields := map[string]*float64{
		"age":                &app.Age,
		"gender":             &app.Gender,
		"marital_status":     &app.MaritalStatus,
		"dependents":         &app.Dependents,
		"education":          &app.Education,
		"employment_status":  &app.Employment,
		"applicant_income":   &app.ApplicantIncome,
		"coapplicant_income": &app.CoapplicantIncome,
		"loan_amount":        &app.LoanAmount,
		"loan_amount_term":   &app.LoanAmountTerm,
		"credit_history":     &app.CreditHistory,
		"property_area":      &app.PropertyArea,
	}
	for i, name := range names {
		if dst, ok := fields[name]; ok {
			*dst = vector[i]
		}
	}
	return app, nil
}

// ScoreLoan applies the fixed point rules. Every field falls into a bracket,
// so the function is total.
func ScoreLoan(app LoanApplication) LoanScore {
	score := 0

	if app.CreditHistory == 1 {
		score += 3
	} else {
		score -= 2
	}

	switch {
	case app.ApplicantIncome > 50000:
		score += 3
	case app.ApplicantIncome > 30000:
		score += 2
	case app.ApplicantIncome > 15000:
		score++
	}

	if app.CoapplicantIncome > 20000 {
		score++
	}

	switch {
	case app.LoanAmount < 200000:
		score += 2
	case app.LoanAmount < 400000:
		score++
	default:
		score -= 2
	}

	switch {
	case app.LoanAmountTerm < 180:
		score++
	case app.LoanAmountTerm > 360:
		score--
	}

	if app.Employment == 1 {
		score++
	}
	if app.Education == 1 {
		score++
	}
	if app.Dependents <= 2 {
		score++
	}
	if app.PropertyArea == 2 || app.PropertyArea == 1 {
		score++
	}
	if app.Age >= 21 && app.Age <= 60 {
		score++
	}

	approved := score >= LoanApprovalThreshold
	decision := LoanRejected
	if approved {
		decision = LoanApproved
	}
	return LoanScore{Score: score, Approved: approved, Decision: decision}
}
