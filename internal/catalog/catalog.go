// Package catalog holds the read-only recipe catalog: per product, the
// ordered production steps and batch constraints the engine schedules from.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/bakesched/pkg/model"
)

// Catalog maps product ids to validated recipes.
type Catalog struct {
	recipes map[string]*model.Recipe
	logger  *slog.Logger
}

// New builds a catalog from the given recipes, validating each one.
func New(recipes []*model.Recipe, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		recipes: make(map[string]*model.Recipe, len(recipes)),
		logger:  logger.With("component", "catalog"),
	}
	for _, r := range recipes {
		if err := Validate(r); err != nil {
			return nil, err
		}
		if _, dup := c.recipes[r.ProductID]; dup {
			return nil, &model.InvalidRecipeError{Product: r.ProductID, Reason: "duplicate recipe"}
		}
		c.recipes[r.ProductID] = r
	}
	return c, nil
}

// LoadDir reads every *.yaml/*.yml file under dir as a recipe document.
func LoadDir(dir string, logger *slog.Logger) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read recipe dir %s: %w", dir, err)
	}

	var recipes []*model.Recipe
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read recipe %s: %w", path, err)
		}
		var r model.Recipe
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse recipe %s: %w", path, err)
		}
		recipes = append(recipes, &r)
	}

	logger.Info("recipe catalog loaded", "dir", dir, "recipes", len(recipes))
	return New(recipes, logger)
}

// RecipeForProduct returns the recipe for the given product id, or an
// UnknownProductError.
func (c *Catalog) RecipeForProduct(productID string) (*model.Recipe, error) {
	r, ok := c.recipes[productID]
	if !ok {
		return nil, &model.UnknownProductError{Product: productID}
	}
	return r, nil
}

// Products returns the known products sorted by id.
func (c *Catalog) Products() []model.Product {
	products := make([]model.Product, 0, len(c.recipes))
	for _, r := range c.recipes {
		products = append(products, model.Product{ID: r.ProductID, Name: r.ProductName})
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

// Len returns the number of recipes in the catalog.
func (c *Catalog) Len() int {
	return len(c.recipes)
}

// Validate checks a recipe's internal constraints: at least one step,
// positive durations and scaling factors, consistent batch bounds.
// A zero ScalingFactor is normalized to 1 before checking.
func Validate(r *model.Recipe) error {
	if r.ProductID == "" {
		return &model.InvalidRecipeError{Product: r.ProductID, Reason: "missing product id"}
	}
	if len(r.Steps) == 0 {
		return &model.InvalidRecipeError{Product: r.ProductID, Reason: "recipe has no steps"}
	}
	if r.MinBatchSize <= 0 || r.MaxBatchSize <= 0 {
		return &model.InvalidRecipeError{Product: r.ProductID, Reason: "batch sizes must be positive"}
	}
	if r.MinBatchSize > r.MaxBatchSize {
		return &model.InvalidRecipeError{
			Product: r.ProductID,
			Reason:  fmt.Sprintf("min batch %d exceeds max batch %d", r.MinBatchSize, r.MaxBatchSize),
		}
	}
	if r.MaxChillTime < 0 {
		return &model.InvalidRecipeError{Product: r.ProductID, Reason: "max chill time must be >= 0"}
	}
	for i := range r.Steps {
		step := &r.Steps[i]
		if step.Name == "" {
			return &model.InvalidRecipeError{Product: r.ProductID, Reason: fmt.Sprintf("step %d has no name", i)}
		}
		if step.Duration <= 0 {
			return &model.InvalidRecipeError{
				Product: r.ProductID,
				Reason:  fmt.Sprintf("step %q duration must be positive", step.Name),
			}
		}
		if step.ScalingFactor == 0 {
			step.ScalingFactor = 1
		}
		if step.ScalingFactor < 0 {
			return &model.InvalidRecipeError{
				Product: r.ProductID,
				Reason:  fmt.Sprintf("step %q scaling factor must be positive", step.Name),
			}
		}
	}
	// The first step has nothing to follow.
	if r.Steps[0].MustFollowImmediately {
		return &model.InvalidRecipeError{Product: r.ProductID, Reason: "first step cannot be must-follow-immediately"}
	}
	return nil
}
