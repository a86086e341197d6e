package schema

// AnalysisResult is the normalized output of a product analysis.
type AnalysisResult struct {
	HealthInsight         string       `json:"healthInsight"`
	SustainabilityInsight string       `json:"sustainabilityInsight"`
	HealthScore           float64      `json:"healthScore"`
	EcoScore              float64      `json:"ecoScore"`
	Alternative           *Suggestion  `json:"alternative,omitempty"`
	ConcerningIngredients []Suggestion `json:"concerningIngredients,omitempty"`
}

// Suggestion names a product or ingredient and why it matters.
type Suggestion struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// MinScore and MaxScore bound HealthScore and EcoScore.
const (
	MinScore = 0
	MaxScore = 100
)

// AnalysisSchema describes AnalysisResult for structured output requests.
func AnalysisSchema() *Descriptor {
	suggestion := func(required bool) *Descriptor {
		return Object(required,
			Field("name", String(true)),
			Field("reason", String(true)),
		)
	}

	return Object(true,
		Field("healthInsight", String(true).Describe("Short assessment of the product's health impact.")),
		Field("sustainabilityInsight", String(true).Describe("Short assessment of the product's environmental impact.")),
		Field("healthScore", Number(true).Describe("Health score from 0 to 100.")),
		Field("ecoScore", Number(true).Describe("Sustainability score from 0 to 100.")),
		Field("alternative", suggestion(false).Describe("A healthier or greener alternative product.")),
		Field("concerningIngredients", Array(false, suggestion(true)).Describe("Ingredients worth flagging.")),
	)
}
