package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/me/bakesched/internal/config"
	"github.com/me/bakesched/pkg/model"
)

// Validator checks an order against the catalog and kitchen constraints
// before any scheduling work starts. Failures come back as a structured
// result, never as an error: only the validator's own misconfiguration
// would surface as an error, and it has none.
type Validator struct {
	recipes RecipeSource
	kitchen config.KitchenConfig
	logger  *slog.Logger

	// Now is the clock used for the future-delivery check. Tests override it.
	Now func() time.Time
}

// NewValidator creates a validator bound to the catalog and kitchen limits.
func NewValidator(recipes RecipeSource, kitchen config.KitchenConfig, logger *slog.Logger) *Validator {
	return &Validator{
		recipes: recipes,
		kitchen: kitchen,
		logger:  logger.With("component", "validator"),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// ValidateOrder runs every check and collects all findings instead of
// stopping at the first. Quantities below a recipe's minimum batch are a
// warning (the planner rounds them up); quantities above the absolute
// ceiling are a rejection.
func (v *Validator) ValidateOrder(order *model.Order) *model.ValidationResult {
	res := &model.ValidationResult{Valid: true, Warnings: []string{}}
	reject := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}

	if order.CustomerName == "" {
		reject("customer name is required")
	}
	if len(order.Items) == 0 {
		reject("order has no items")
	}

	if delivery, err := order.DeliveryTime(); err != nil {
		reject("invalid delivery date %q %q", order.DeliveryDate, order.DeliverySlot)
	} else if !delivery.After(v.Now()) {
		reject("delivery time %s is in the past", delivery.Format("2006-01-02 15:04"))
	}

	for _, item := range order.Items {
		if item.Product == "" {
			reject("order item is missing a product")
			continue
		}
		if item.Quantity <= 0 {
			reject("quantity for %q must be positive, got %d", item.Product, item.Quantity)
			continue
		}
		if item.Quantity > v.kitchen.MaxOrderQuantity {
			reject("quantity %d for %q exceeds the order limit of %d",
				item.Quantity, item.Product, v.kitchen.MaxOrderQuantity)
		}

		recipe, err := v.recipes.RecipeForProduct(item.Product)
		if err != nil {
			reject("unknown product %q", item.Product)
			continue
		}
		if item.Quantity < recipe.MinBatchSize {
			warn("quantity %d for %q is below the minimum batch of %d; production will be rounded up",
				item.Quantity, item.Product, recipe.MinBatchSize)
		}
		if recipe.RequiresChilling && recipe.MaxChillTime > v.kitchen.ChillStorageLimitMin {
			reject("%s", &model.StorageConstraintError{
				Product:      item.Product,
				MaxChillTime: recipe.MaxChillTime,
				StorageLimit: v.kitchen.ChillStorageLimitMin,
			})
		}
	}

	if !res.Valid {
		v.logger.Debug("order rejected", "order_id", order.ID, "errors", len(res.Errors))
	}
	return res
}
