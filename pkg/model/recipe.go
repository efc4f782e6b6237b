package model

// ResourceCategory is a class of shared, capacity-limited production asset.
// Capacities are configured externally; the set is extensible.
type ResourceCategory string

const (
	ResourceBaker ResourceCategory = "baker"
	ResourceOven  ResourceCategory = "oven"
	ResourceMixer ResourceCategory = "mixer"
)

// String returns the string representation of the resource category.
func (r ResourceCategory) String() string {
	return string(r)
}

// Product is immutable reference data identifying something the bakery sells.
type Product struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ProductionStep is one stage of a recipe. Duration is the base duration in
// minutes for a batch of the recipe's maximum size; ScalingFactor multiplies
// it, and the effective duration is further scaled by batch size.
type ProductionStep struct {
	Name string `json:"name" yaml:"name"`

	// Duration is the base duration in minutes. Must be > 0.
	Duration int `json:"duration" yaml:"duration"`

	// Resources lists the resource categories this step occupies for its
	// whole duration.
	Resources []ResourceCategory `json:"resources" yaml:"resources"`

	// MustFollowImmediately forces this step to start exactly when the
	// previous step ends, with zero gap.
	MustFollowImmediately bool `json:"must_follow_immediately" yaml:"must_follow_immediately"`

	// ScalingFactor multiplies the base duration. Must be > 0; defaults to 1.
	ScalingFactor float64 `json:"scaling_factor" yaml:"scaling_factor"`
}

// Requires reports whether the step occupies the given resource category.
func (s *ProductionStep) Requires(cat ResourceCategory) bool {
	for _, r := range s.Resources {
		if r == cat {
			return true
		}
	}
	return false
}

// Recipe is the ordered production plan for one product. Step order is
// significant: the scheduler never reorders steps of a batch.
type Recipe struct {
	ProductID   string           `json:"product_id" yaml:"product_id"`
	ProductName string           `json:"product_name" yaml:"product_name"`
	Steps       []ProductionStep `json:"steps" yaml:"steps"`

	RequiresChilling bool `json:"requires_chilling" yaml:"requires_chilling"`

	// MaxChillTime is the longest the product may sit chilled, in minutes.
	MaxChillTime int `json:"max_chill_time" yaml:"max_chill_time"`

	// Batch bounds. 0 < MinBatchSize <= MaxBatchSize.
	MinBatchSize int `json:"min_batch_size" yaml:"min_batch_size"`
	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size"`
}

// TotalDuration returns the sum of the base step durations in minutes.
func (r *Recipe) TotalDuration() int {
	total := 0
	for i := range r.Steps {
		total += r.Steps[i].Duration
	}
	return total
}
