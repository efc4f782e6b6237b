package engine

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/me/bakesched/internal/config"
	"github.com/me/bakesched/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKitchen() config.KitchenConfig {
	return config.KitchenConfig{
		Hours:                testHours(),
		Capacities:           testCapacities(),
		PreDeliveryBufferMin: 60,
		StepGapBufferMin:     15,
		MaxLookBackDays:      3,
		MaxOrderQuantity:     500,
		ChillStorageLimitMin: 48 * 60,
	}
}

// stubRecipes is a fixed in-memory RecipeSource.
type stubRecipes map[string]*model.Recipe

func (s stubRecipes) RecipeForProduct(productID string) (*model.Recipe, error) {
	r, ok := s[productID]
	if !ok {
		return nil, &model.UnknownProductError{Product: productID}
	}
	return r, nil
}

// loafRecipe has no immediacy constraints: mix, proof, bake.
func loafRecipe() *model.Recipe {
	return &model.Recipe{
		ProductID:   "loaf",
		ProductName: "Loaf",
		Steps: []model.ProductionStep{
			{Name: "mix", Duration: 30, Resources: []model.ResourceCategory{model.ResourceBaker, model.ResourceMixer}},
			{Name: "proof", Duration: 60},
			{Name: "bake", Duration: 30, Resources: []model.ResourceCategory{model.ResourceOven}},
		},
		MinBatchSize: 3,
		MaxBatchSize: 12,
	}
}

// pastryRecipe pins bake to the end of proof.
func pastryRecipe() *model.Recipe {
	r := loafRecipe()
	r.ProductID = "pastry"
	r.Steps[2].MustFollowImmediately = true
	return r
}

func testOrder(product string, quantity int) *model.Order {
	return &model.Order{
		ID:           "order_test",
		CustomerName: "Test Customer",
		Status:       model.OrderStatusPending,
		DeliveryDate: "2030-06-01",
		DeliverySlot: "12:00",
		Items:        []model.OrderItem{{ID: "item_1", Product: product, Quantity: quantity}},
		CreatedAt:    time.Now().UTC(),
	}
}

func taskByStep(t *testing.T, tasks []*model.ScheduledTask, step string) *model.ScheduledTask {
	t.Helper()
	for _, task := range tasks {
		if task.Step == step {
			return task
		}
	}
	t.Fatalf("no task for step %q", step)
	return nil
}

func TestScheduleOrderSingleBatch(t *testing.T) {
	recipes := stubRecipes{"loaf": loafRecipe()}
	sched := NewScheduler(recipes, testKitchen(), testLogger())

	tasks, err := sched.ScheduleOrder(testOrder("loaf", 12), sched.NewLedger())
	if err != nil {
		t.Fatalf("ScheduleOrder: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}

	// Deadline is delivery 12:00 minus the 60-minute buffer; each earlier
	// step ends at least the 15-minute gap before its successor starts.
	bake := taskByStep(t, tasks, "bake")
	if !bake.EndTime.Equal(at(t, "11:00")) {
		t.Errorf("bake ends %s, want 11:00", bake.EndTime)
	}
	proof := taskByStep(t, tasks, "proof")
	if !proof.EndTime.Equal(at(t, "10:15")) {
		t.Errorf("proof ends %s, want 10:15", proof.EndTime)
	}
	mix := taskByStep(t, tasks, "mix")
	if !mix.EndTime.Equal(at(t, "09:00")) {
		t.Errorf("mix ends %s, want 09:00", mix.EndTime)
	}

	for i := 1; i < len(tasks); i++ {
		if tasks[i].StartTime.Before(tasks[i-1].StartTime) {
			t.Error("tasks not sorted by start time")
		}
	}
	for _, task := range tasks {
		if task.BatchSize != 12 {
			t.Errorf("task %s batch size = %d, want 12", task.Step, task.BatchSize)
		}
		if task.BatchID == "" {
			t.Errorf("task %s has no batch id", task.Step)
		}
	}
}

func TestScheduleOrderImmediateFollow(t *testing.T) {
	recipes := stubRecipes{"pastry": pastryRecipe()}
	sched := NewScheduler(recipes, testKitchen(), testLogger())

	tasks, err := sched.ScheduleOrder(testOrder("pastry", 12), sched.NewLedger())
	if err != nil {
		t.Fatalf("ScheduleOrder: %v", err)
	}

	proof := taskByStep(t, tasks, "proof")
	bake := taskByStep(t, tasks, "bake")
	if !proof.EndTime.Equal(bake.StartTime) {
		t.Errorf("proof ends %s but bake starts %s; must be back to back",
			proof.EndTime, bake.StartTime)
	}
}

func TestScheduleOrderSplitsBatches(t *testing.T) {
	recipes := stubRecipes{"loaf": loafRecipe()}
	sched := NewScheduler(recipes, testKitchen(), testLogger())
	ledger := sched.NewLedger()

	tasks, err := sched.ScheduleOrder(testOrder("loaf", 15), ledger)
	if err != nil {
		t.Fatalf("ScheduleOrder: %v", err)
	}
	// 15 loaves split into batches of 12 and 3, three steps each.
	if len(tasks) != 6 {
		t.Fatalf("got %d tasks, want 6", len(tasks))
	}

	batches := map[string][]*model.ScheduledTask{}
	for _, task := range tasks {
		batches[task.BatchID] = append(batches[task.BatchID], task)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}

	// The single oven serializes the two bake tasks.
	var bakes []*model.ScheduledTask
	for _, task := range tasks {
		if task.Step == "bake" {
			bakes = append(bakes, task)
		}
	}
	if len(bakes) != 2 {
		t.Fatalf("got %d bake tasks, want 2", len(bakes))
	}
	if bakes[0].Overlaps(bakes[1].StartTime, bakes[1].EndTime) {
		t.Errorf("bake tasks overlap on a capacity-1 oven: %s-%s and %s-%s",
			bakes[0].StartTime, bakes[0].EndTime, bakes[1].StartTime, bakes[1].EndTime)
	}
}

func TestScheduleOrderScalesDurations(t *testing.T) {
	recipes := stubRecipes{"loaf": loafRecipe()}
	sched := NewScheduler(recipes, testKitchen(), testLogger())

	// A batch of 3 out of max 12 scales every step to a quarter,
	// rounded to whole minutes.
	tasks, err := sched.ScheduleOrder(testOrder("loaf", 3), sched.NewLedger())
	if err != nil {
		t.Fatalf("ScheduleOrder: %v", err)
	}
	if got := taskByStep(t, tasks, "proof").Duration(); got != 15 {
		t.Errorf("proof duration = %d min, want 15", got)
	}
	if got := taskByStep(t, tasks, "bake").Duration(); got != 8 {
		t.Errorf("bake duration = %d min, want 8", got)
	}
}

func TestScheduleOrderRollsBackOnFailure(t *testing.T) {
	kitchen := testKitchen()
	kitchen.MaxLookBackDays = 1
	recipes := stubRecipes{"loaf": loafRecipe()}
	sched := NewScheduler(recipes, kitchen, testLogger())
	ledger := sched.NewLedger()

	// Fill both mixers across the whole search horizon: bake and proof will
	// place, then mix will fail and everything must unwind.
	for d := 0; d <= 1; d++ {
		day := at(t, "08:00").AddDate(0, 0, -d)
		for i := 0; i < 2; i++ {
			if err := ledger.Reserve(model.ResourceMixer, day, day.Add(11*time.Hour)); err != nil {
				t.Fatal(err)
			}
		}
	}

	_, err := sched.ScheduleOrder(testOrder("loaf", 12), ledger)
	var se *model.SchedulingError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchedulingError, got %v", err)
	}
	if se.Step != "mix" {
		t.Errorf("failed step = %q, want mix", se.Step)
	}
	if !model.IsNoFeasibleSlot(err) {
		t.Errorf("expected a wrapped NoFeasibleSlotError, got %v", err)
	}

	// The failed order released everything it reserved, including the bake
	// task that had already been placed.
	for _, clock := range []string{"08:30", "10:00", "14:00", "18:30"} {
		if got := ledger.CountAt(model.ResourceOven, at(t, clock)); got != 0 {
			t.Errorf("oven reservation leaked at %s: count %d", clock, got)
		}
		if got := ledger.CountAt(model.ResourceBaker, at(t, clock)); got != 0 {
			t.Errorf("baker reservation leaked at %s: count %d", clock, got)
		}
	}
}

func TestScheduleOrderUnknownProduct(t *testing.T) {
	sched := NewScheduler(stubRecipes{}, testKitchen(), testLogger())

	_, err := sched.ScheduleOrder(testOrder("nope", 5), sched.NewLedger())
	var unknown *model.UnknownProductError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownProductError, got %v", err)
	}
}

func TestStepDurationFloor(t *testing.T) {
	r := loafRecipe()
	step := &r.Steps[0]
	step.Duration = 1

	// Even a tiny scaled batch takes at least one minute.
	if got := StepDuration(step, 1, r); got != time.Minute {
		t.Errorf("StepDuration = %s, want 1m", got)
	}
}
