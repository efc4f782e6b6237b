package catalog

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/bakesched/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func goodRecipe() *model.Recipe {
	return &model.Recipe{
		ProductID:   "loaf",
		ProductName: "Loaf",
		Steps: []model.ProductionStep{
			{Name: "mix", Duration: 30, Resources: []model.ResourceCategory{model.ResourceBaker}},
			{Name: "bake", Duration: 45, Resources: []model.ResourceCategory{model.ResourceOven}},
		},
		MinBatchSize: 3,
		MaxBatchSize: 12,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*model.Recipe)
		wantReason string
	}{
		{"valid", func(r *model.Recipe) {}, ""},
		{"missing id", func(r *model.Recipe) { r.ProductID = "" }, "missing product id"},
		{"no steps", func(r *model.Recipe) { r.Steps = nil }, "no steps"},
		{"zero min batch", func(r *model.Recipe) { r.MinBatchSize = 0 }, "batch sizes must be positive"},
		{"min over max", func(r *model.Recipe) { r.MinBatchSize = 20 }, "min batch 20 exceeds max batch 12"},
		{"negative chill", func(r *model.Recipe) { r.MaxChillTime = -1 }, "chill time"},
		{"unnamed step", func(r *model.Recipe) { r.Steps[1].Name = "" }, "has no name"},
		{"zero duration", func(r *model.Recipe) { r.Steps[0].Duration = 0 }, "duration must be positive"},
		{"negative scaling", func(r *model.Recipe) { r.Steps[0].ScalingFactor = -0.5 }, "scaling factor"},
		{"immediate first step", func(r *model.Recipe) { r.Steps[0].MustFollowImmediately = true }, "first step"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := goodRecipe()
			tt.mutate(r)

			err := Validate(r)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			var invalid *model.InvalidRecipeError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidRecipeError, got %v", err)
			}
			if !strings.Contains(invalid.Reason, tt.wantReason) {
				t.Errorf("reason %q does not mention %q", invalid.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidateNormalizesScalingFactor(t *testing.T) {
	r := goodRecipe()
	r.Steps[0].ScalingFactor = 0

	if err := Validate(r); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r.Steps[0].ScalingFactor != 1 {
		t.Errorf("zero scaling factor not normalized, got %v", r.Steps[0].ScalingFactor)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]*model.Recipe{goodRecipe(), goodRecipe()}, testLogger())
	var invalid *model.InvalidRecipeError
	if !errors.As(err, &invalid) || !strings.Contains(invalid.Reason, "duplicate") {
		t.Fatalf("expected duplicate recipe error, got %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "loaf.yaml", `
product_id: loaf
product_name: Loaf
min_batch_size: 3
max_batch_size: 12
steps:
  - name: mix
    duration: 30
    resources: [baker, mixer]
  - name: bake
    duration: 45
    resources: [oven]
    must_follow_immediately: true
`)
	writeFile(t, dir, "cake.yml", `
product_id: cake
product_name: Cake
min_batch_size: 2
max_batch_size: 8
requires_chilling: true
max_chill_time: 720
steps:
  - name: mix
    duration: 20
    resources: [baker]
  - name: bake
    duration: 40
    resources: [oven]
`)
	writeFile(t, dir, "notes.txt", "not a recipe")

	c, err := LoadDir(dir, testLogger())
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("loaded %d recipes, want 2", c.Len())
	}

	r, err := c.RecipeForProduct("loaf")
	if err != nil {
		t.Fatalf("RecipeForProduct: %v", err)
	}
	if len(r.Steps) != 2 || !r.Steps[1].MustFollowImmediately {
		t.Errorf("loaf recipe parsed wrong: %+v", r)
	}
	if r.Steps[0].ScalingFactor != 1 {
		t.Errorf("scaling factor not defaulted, got %v", r.Steps[0].ScalingFactor)
	}

	cake, err := c.RecipeForProduct("cake")
	if err != nil {
		t.Fatalf("RecipeForProduct: %v", err)
	}
	if !cake.RequiresChilling || cake.MaxChillTime != 720 {
		t.Errorf("cake chilling parsed wrong: %+v", cake)
	}

	products := c.Products()
	if len(products) != 2 || products[0].ID != "cake" || products[1].ID != "loaf" {
		t.Errorf("Products() not sorted by id: %+v", products)
	}
}

func TestLoadDirRejectsBadRecipe(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", `
product_id: broken
min_batch_size: 5
max_batch_size: 2
steps:
  - name: mix
    duration: 10
`)

	if _, err := LoadDir(dir, testLogger()); err == nil {
		t.Fatal("expected error for inconsistent batch bounds")
	}
}

func TestRecipeForProductUnknown(t *testing.T) {
	c, err := New(nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.RecipeForProduct("nope")
	var unknown *model.UnknownProductError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownProductError, got %v", err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
