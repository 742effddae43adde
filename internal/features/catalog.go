package features

// Task names shared by the schema catalog, the bundle loader and the HTTP layer.
const (
	TaskRTT    = "rtt"
	TaskLogin  = "login"
	TaskAttack = "attack"
	TaskLaptop = "laptop"
	TaskLoan   = "loan"
)

// DemoNetworkFeatures is the slot list the login-telemetry models fall back to
// when no feature list artifact is present.
var DemoNetworkFeatures = []string{
	"ASN", "hour", "day_of_week", "month", "day_of_month", "week_of_year",
	"is_weekend", "is_business_hour", "hour_sin", "hour_cos", "day_sin", "day_cos",
	"Country_freq", "Region_freq", "City_freq", "Browser Name and Version_freq",
	"OS Name and Version_freq", "Device Type_freq", "rtt_category_fine", "rtt_log",
	"rtt_sqrt", "rtt_reciprocal", "user_login_count", "user_rtt_mean", "user_rtt_std",
	"user_rtt_min", "user_rtt_max", "user_total_logins", "ip_login_count", "ip_rtt_mean",
	"ip_rtt_std", "ip_unique_users", "hour_country_interaction", "day_country_interaction",
	"ip_attack_count",
}

// NetworkSchema builds the all-numeric schema used by the rtt, login and attack
// models. An empty names list selects DemoNetworkFeatures.
func NetworkSchema(task string, names []string) (*Schema, error) {
	if len(names) == 0 {
		names = DemoNetworkFeatures
	}
	return NewNumericSchema(task, names)
}

// LaptopSchema mirrors the integer codes the laptop price model was trained with.
func LaptopSchema() *Schema {
	return mustSchema(TaskLaptop, []Slot{
		{Name: "brand", Kind: Categorical, Lookup: map[string]float64{
			"ASUS": 1, "Lenovo": 2, "acer": 3, "Avita": 4, "HP": 5, "DELL": 6, "MSI": 7, "APPLE": 8,
		}},
		{Name: "processor_brand", Kind: Categorical, Lookup: map[string]float64{
			"Intel": 1, "AMD": 2, "M1": 3,
		}},
		{Name: "processor_name", Kind: Categorical, Lookup: map[string]float64{
			"Core i3": 1, "Core i5": 2, "Celeron Dual": 3, "Ryzen 5": 4, "Core i7": 5, "Core i9": 6,
			"M1": 7, "Pentium Quad": 8, "Ryzen 3": 9, "Ryzen 7": 10, "Ryzen 9": 11,
		}},
		{Name: "processor_gnrtn", Kind: Categorical, Lookup: map[string]float64{
			"10th": 1, "Not Available": 2, "11th": 3, "7th": 4, "8th": 5, "9th": 6, "4th": 7, "12th": 8,
		}},
		{Name: "ram_gb", Kind: Numeric},
		{Name: "ram_type", Kind: Categorical, Lookup: map[string]float64{
			"DDR4": 1, "LPDDR4": 2, "LPDDR4X": 3, "DDR5": 4, "DDR3": 5, "LPDDR3": 6,
		}},
		{Name: "ssd", Kind: Numeric},
		{Name: "hdd", Kind: Numeric},
		{Name: "graphic_card_gb", Source: "graphics_card", Kind: Categorical, Lookup: map[string]float64{
			"0": 0, "2": 2, "4": 4, "6": 6, "8": 8,
		}},
		{Name: "warranty", Kind: Categorical, Unknown: 1, Lookup: map[string]float64{
			"No warranty": 1, "1 year": 2, "2 years": 3, "3 years": 4,
		}},
		{Name: "Touchscreen", Kind: Categorical, Unknown: 1, Lookup: map[string]float64{
			"No": 1, "Yes": 2,
		}},
	})
}

// LoanSchema mirrors the loan form encoding. Binary fields go through explicit
// two-entry tables that also accept their integer codes; credit_history is
// assumed good when not supplied.
func LoanSchema() *Schema {
	return mustSchema(TaskLoan, []Slot{
		{Name: "age", Kind: Numeric},
		{Name: "gender", Kind: Categorical, AcceptCodes: true, Lookup: map[string]float64{"Male": 1, "Female": 0}},
		{Name: "marital_status", Kind: Categorical, AcceptCodes: true, Lookup: map[string]float64{"Married": 1, "Single": 0}},
		{Name: "dependents", Kind: Numeric},
		{Name: "education", Kind: Categorical, AcceptCodes: true, Lookup: map[string]float64{"Graduate": 1, "Not Graduate": 0}},
		{Name: "employment_status", Aliases: []string{"employment"}, Kind: Categorical, AcceptCodes: true, Lookup: map[string]float64{
			"Employed": 1, "Self-Employed": 1, "Unemployed": 0,
		}},
		{Name: "applicant_income", Kind: Numeric},
		{Name: "coapplicant_income", Kind: Numeric},
		{Name: "loan_amount", Kind: Numeric},
		{Name: "loan_amount_term", Kind: Numeric},
		{Name: "credit_history", Kind: Numeric, Default: 1},
		{Name: "property_area", Kind: Categorical, AcceptCodes: true, Lookup: map[string]float64{
			"Urban": 2, "Semiurban": 1, "Rural": 0,
		}},
	})
}

func mustSchema(name string, slots []Slot) *Schema {
	s, err := NewSchema(name, slots)
	if err != nil {
		panic(err)
	}
	return s
}
