package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/me/bakesched/internal/config"
	"github.com/me/bakesched/pkg/model"
)

func testOptimizerConfig() config.OptimizerConfig {
	return config.OptimizerConfig{
		PopulationSize:    8,
		Generations:       12,
		ConvergenceWindow: 5,
		Parallelism:       2,
		TabuSize:          8,
		LocalSearchIters:  30,
		SpanWeight:        1.0,
		IdleWeight:        0.5,
		MarginWeight:      0.1,
	}
}

func optimizerOrders(n int) []*model.Order {
	orders := make([]*model.Order, n)
	for i := range orders {
		o := testOrder("loaf", 6)
		o.ID = fmt.Sprintf("order_%d", i)
		o.Items[0].ID = fmt.Sprintf("item_%d", i)
		orders[i] = o
	}
	return orders
}

func newTestOptimizer(seed int64) (*Optimizer, *Scheduler) {
	recipes := stubRecipes{"loaf": loafRecipe()}
	sched := NewScheduler(recipes, testKitchen(), testLogger())
	return NewOptimizer(sched, recipes, testOptimizerConfig(), testLogger(), seed), sched
}

func TestOptimizeProducesFeasibleSchedule(t *testing.T) {
	opt, sched := newTestOptimizer(1)
	orders := optimizerOrders(3)

	result, err := opt.Optimize(context.Background(), orders, sched.NewLedger())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// Three orders, one batch each, three steps per batch.
	if len(result.Tasks) != 9 {
		t.Fatalf("got %d tasks, want 9", len(result.Tasks))
	}

	// The winning schedule must replay onto a fresh ledger without any
	// capacity violation.
	check := sched.NewLedger()
	if err := check.SeedTasks(result.Tasks); err != nil {
		t.Fatalf("optimized schedule violates capacity: %v", err)
	}

	// Every order finishes before its deadline.
	lastEnd := map[string]*model.ScheduledTask{}
	for _, task := range result.Tasks {
		if cur, ok := lastEnd[task.OrderID]; !ok || task.EndTime.After(cur.EndTime) {
			lastEnd[task.OrderID] = task
		}
	}
	for _, order := range orders {
		deadline, err := sched.Deadline(order)
		if err != nil {
			t.Fatal(err)
		}
		if task := lastEnd[order.ID]; task.EndTime.After(deadline) {
			t.Errorf("order %s finishes %s, after deadline %s", order.ID, task.EndTime, deadline)
		}
	}
}

func TestOptimizeIsDeterministicPerSeed(t *testing.T) {
	orders := optimizerOrders(4)

	opt1, sched1 := newTestOptimizer(7)
	r1, err := opt1.Optimize(context.Background(), orders, sched1.NewLedger())
	if err != nil {
		t.Fatal(err)
	}

	opt2, sched2 := newTestOptimizer(7)
	r2, err := opt2.Optimize(context.Background(), orders, sched2.NewLedger())
	if err != nil {
		t.Fatal(err)
	}

	if r1.Fitness != r2.Fitness {
		t.Errorf("same seed, different fitness: %v vs %v", r1.Fitness, r2.Fitness)
	}
	if len(r1.Tasks) != len(r2.Tasks) {
		t.Errorf("same seed, different task counts: %d vs %d", len(r1.Tasks), len(r2.Tasks))
	}
}

func TestOptimizeNeverWorseThanGreedy(t *testing.T) {
	orders := optimizerOrders(3)

	// Greedy baseline: schedule in submission order on a fresh ledger.
	recipes := stubRecipes{"loaf": loafRecipe()}
	sched := NewScheduler(recipes, testKitchen(), testLogger())
	ledger := sched.NewLedger()
	var greedy []*model.ScheduledTask
	for _, o := range orders {
		tasks, err := sched.ScheduleOrder(o, ledger)
		if err != nil {
			t.Fatal(err)
		}
		greedy = append(greedy, tasks...)
	}
	opt := NewOptimizer(sched, recipes, testOptimizerConfig(), testLogger(), 3)
	greedyFitness := opt.score(greedy, orders, ledger)

	result, err := opt.Optimize(context.Background(), orders, sched.NewLedger())
	if err != nil {
		t.Fatal(err)
	}
	// The identity genome is always in the initial population, so the
	// search can only match or beat the greedy schedule.
	if result.Fitness > greedyFitness+convergenceTol {
		t.Errorf("optimized fitness %v worse than greedy %v", result.Fitness, greedyFitness)
	}
}

func TestOptimizeEmptyOrders(t *testing.T) {
	opt, sched := newTestOptimizer(1)

	result, err := opt.Optimize(context.Background(), nil, sched.NewLedger())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(result.Tasks) != 0 || result.Fitness != 0 {
		t.Errorf("empty input should yield an empty result, got %+v", result)
	}
}

func TestOptimizeInfeasibleOrders(t *testing.T) {
	opt, sched := newTestOptimizer(1)
	orders := optimizerOrders(1)
	orders[0].Items[0].Product = "unicorn"

	if _, err := opt.Optimize(context.Background(), orders, sched.NewLedger()); err == nil {
		t.Fatal("expected error when no candidate can be decoded")
	}
}

func TestCrossoverPreservesPermutation(t *testing.T) {
	opt, _ := newTestOptimizer(5)

	n := 6
	a := genome{perm: opt.rng.Perm(n), jitter: make([]time.Duration, n)}
	b := genome{perm: opt.rng.Perm(n), jitter: make([]time.Duration, n)}

	for i := 0; i < 50; i++ {
		child := opt.crossover(a, b)
		seen := make(map[int]bool, n)
		for _, v := range child.perm {
			if v < 0 || v >= n || seen[v] {
				t.Fatalf("crossover broke the permutation: %v", child.perm)
			}
			seen[v] = true
		}
		opt.mutate(&child)
		a, b = b, child
	}
}
