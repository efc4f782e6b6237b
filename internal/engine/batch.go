package engine

import (
	"fmt"

	"github.com/me/bakesched/pkg/model"
)

// PlanBatches decomposes a total quantity into batch sizes honoring the
// recipe's batch bounds. The batches always sum to at least the quantity;
// the bakery over-produces rather than under-delivers.
//
// Policy (fixed, relied on by callers and tests):
//   - maxBatchSize batches are emitted greedily while the remainder exceeds
//     the maximum;
//   - a remainder within [min,max] becomes the final batch;
//   - a positive remainder below minBatchSize is merged into the previous
//     batch, which may then exceed maxBatchSize;
//   - only when the total quantity itself is below minBatchSize is a single
//     minBatchSize batch emitted.
func PlanBatches(quantity int, recipe *model.Recipe) ([]int, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	if recipe.MinBatchSize <= 0 || recipe.MinBatchSize > recipe.MaxBatchSize {
		return nil, &model.InvalidRecipeError{
			Product: recipe.ProductID,
			Reason:  fmt.Sprintf("batch bounds [%d,%d] are inconsistent", recipe.MinBatchSize, recipe.MaxBatchSize),
		}
	}

	var batches []int
	remaining := quantity
	for remaining > 0 {
		switch {
		case remaining >= recipe.MaxBatchSize:
			batches = append(batches, recipe.MaxBatchSize)
			remaining -= recipe.MaxBatchSize
		case remaining >= recipe.MinBatchSize:
			batches = append(batches, remaining)
			remaining = 0
		case len(batches) > 0:
			batches[len(batches)-1] += remaining
			remaining = 0
		default:
			batches = append(batches, recipe.MinBatchSize)
			remaining = 0
		}
	}
	return batches, nil
}
