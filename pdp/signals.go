// Package pdp scores how strongly a DOM snapshot looks like a
// product-detail page.
//
// The model is deliberately additive: a fixed set of independent
// detectors each contribute a fixed positive weight when their signal is
// present, with no cap and no interaction between signals. The score is
// a raw point total (max plausible around 110), compared against a
// configured threshold by the orchestrator.
package pdp

// Signal weights. The sum of present signals is the confidence score.
const (
	WeightPrice          = 25
	WeightActionButton   = 20
	WeightProductTitle   = 15
	WeightStructuredData = 15
	WeightProductImage   = 10
	WeightReviews        = 10
	WeightMetadata       = 5
	WeightURLPattern     = 5
	WeightBreadcrumb     = 5
)

// DefaultThreshold is the score at or above which a page qualifies as a
// PDP. The permissive value is safe here because qualification is
// two-step: the brand vote must also produce a winner.
const DefaultThreshold = 50

// Signals is the outcome of one scoring pass: boolean flags plus the raw
// extracted values behind them. Computed fresh per pass, never persisted.
type Signals struct {
	HasPrice          bool `json:"has_price"`
	HasActionButton   bool `json:"has_action_button"`
	HasProductTitle   bool `json:"has_product_title"`
	HasProductImage   bool `json:"has_product_image"`
	HasMetadata       bool `json:"has_metadata"`
	HasReviews        bool `json:"has_reviews"`
	HasStructuredData bool `json:"has_structured_data"`
	HasURLPattern     bool `json:"has_url_pattern"`
	HasBreadcrumb     bool `json:"has_breadcrumb"`

	Price    string   `json:"price,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Title    string   `json:"title,omitempty"`
	Images   []string `json:"images,omitempty"`
}

// Score sums the weights of the present signals.
func (s Signals) Score() int {
	score := 0
	if s.HasPrice {
		score += WeightPrice
	}
	if s.HasActionButton {
		score += WeightActionButton
	}
	if s.HasProductTitle {
		score += WeightProductTitle
	}
	if s.HasProductImage {
		score += WeightProductImage
	}
	if s.HasMetadata {
		score += WeightMetadata
	}
	if s.HasReviews {
		score += WeightReviews
	}
	if s.HasStructuredData {
		score += WeightStructuredData
	}
	if s.HasURLPattern {
		score += WeightURLPattern
	}
	if s.HasBreadcrumb {
		score += WeightBreadcrumb
	}
	return score
}
