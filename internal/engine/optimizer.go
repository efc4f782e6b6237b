package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/me/bakesched/internal/config"
	"github.com/me/bakesched/pkg/model"
)

const (
	eliteCount     = 2
	tournamentSize = 3
	// maxJitter bounds the per-order slack a genome may pull off a deadline.
	maxJitter = 2 * time.Hour
	// convergenceTol is the fitness delta below which two generations are
	// considered equal for the convergence stop.
	convergenceTol = 1e-6
)

// tabu search move deltas, in both directions.
var shiftDeltas = []time.Duration{
	-60 * time.Minute, -30 * time.Minute, -15 * time.Minute,
	15 * time.Minute, 30 * time.Minute, 60 * time.Minute,
}

// Optimizer searches for a low-cost joint schedule for a set of orders.
// A genome is an order-priority permutation plus a per-order slack jitter;
// decoding runs the greedy scheduler in genome order against a clone of the
// baseline ledger, so every decoded schedule is feasible by construction.
type Optimizer struct {
	sched   *Scheduler
	recipes RecipeSource
	cfg     config.OptimizerConfig
	logger  *slog.Logger
	rng     *rand.Rand
}

// OptimizationResult is the best schedule the search found.
type OptimizationResult struct {
	Tasks       []*model.ScheduledTask `json:"tasks"`
	Fitness     float64                `json:"fitness"`
	Generations int                    `json:"generations"`
	Improved    bool                   `json:"improved"`
}

type genome struct {
	perm   []int // indices into the order slice, priority order
	jitter []time.Duration
}

type candidate struct {
	genome  genome
	tasks   []*model.ScheduledTask
	ledger  *ResourceLedger
	fitness float64
}

// NewOptimizer creates an optimizer. The seed fixes the whole search: the
// same seed, orders and baseline always produce the same result.
func NewOptimizer(sched *Scheduler, recipes RecipeSource, cfg config.OptimizerConfig, logger *slog.Logger, seed int64) *Optimizer {
	return &Optimizer{
		sched:   sched,
		recipes: recipes,
		cfg:     cfg,
		logger:  logger.With("component", "optimizer"),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Optimize evolves schedules for the given orders on top of the baseline
// ledger (which holds reservations the search must respect but may not
// move). It returns the best feasible schedule found; ctx cancellation
// stops the search early and returns the best so far. An error is returned
// only when not a single feasible schedule exists.
func (o *Optimizer) Optimize(ctx context.Context, orders []*model.Order, baseline *ResourceLedger) (*OptimizationResult, error) {
	if len(orders) == 0 {
		return &OptimizationResult{Tasks: []*model.ScheduledTask{}, Fitness: 0}, nil
	}

	deadlines, err := o.deadlines(orders)
	if err != nil {
		return nil, err
	}

	pop := o.seedPopulation(len(orders))
	if err := o.evaluate(ctx, pop, orders, baseline); err != nil {
		return nil, err
	}
	sortByFitness(pop)

	best := pop[0]
	if math.IsInf(best.fitness, 1) {
		return nil, fmt.Errorf("no feasible schedule for %d order(s): %w",
			len(orders), firstDecodeError(o.sched, orders, baseline))
	}
	baselineFitness := best.fitness

	stale := 0
	gen := 0
	for gen = 1; gen <= o.cfg.Generations; gen++ {
		if ctx.Err() != nil {
			break
		}

		next := make([]*candidate, 0, o.cfg.PopulationSize)
		for i := 0; i < eliteCount && i < len(pop); i++ {
			next = append(next, pop[i])
		}
		for len(next) < o.cfg.PopulationSize {
			a := o.tournament(pop)
			b := o.tournament(pop)
			child := o.crossover(a.genome, b.genome)
			o.mutate(&child)
			next = append(next, &candidate{genome: child})
		}

		if err := o.evaluate(ctx, next, orders, baseline); err != nil {
			return nil, err
		}
		sortByFitness(next)
		pop = next

		if pop[0].fitness < best.fitness-convergenceTol {
			best = pop[0]
			stale = 0
		} else {
			stale++
		}
		if stale >= o.cfg.ConvergenceWindow {
			o.logger.Debug("converged", "generation", gen, "fitness", best.fitness)
			break
		}
	}

	best = o.localSearch(ctx, best, orders, deadlines)

	o.logger.Info("optimization finished",
		"orders", len(orders),
		"generations", gen,
		"fitness", best.fitness,
	)
	return &OptimizationResult{
		Tasks:       best.tasks,
		Fitness:     best.fitness,
		Generations: gen,
		Improved:    best.fitness < baselineFitness-convergenceTol,
	}, nil
}

// seedPopulation builds the initial population: one identity genome (submit
// order, zero jitter) so the greedy baseline is always represented, and
// random permutations for the rest.
func (o *Optimizer) seedPopulation(n int) []*candidate {
	pop := make([]*candidate, 0, o.cfg.PopulationSize)

	identity := genome{perm: make([]int, n), jitter: make([]time.Duration, n)}
	for i := range identity.perm {
		identity.perm[i] = i
	}
	pop = append(pop, &candidate{genome: identity})

	for len(pop) < o.cfg.PopulationSize {
		g := genome{perm: o.rng.Perm(n), jitter: make([]time.Duration, n)}
		for i := range g.jitter {
			g.jitter[i] = time.Duration(o.rng.Int63n(int64(maxJitter)/int64(time.Minute))) * time.Minute
		}
		pop = append(pop, &candidate{genome: g})
	}
	return pop
}

// evaluate decodes and scores every candidate that has no fitness yet.
// Decoding is deterministic per genome, so candidates evaluate in parallel;
// each one gets its own clone of the baseline ledger.
func (o *Optimizer) evaluate(ctx context.Context, pop []*candidate, orders []*model.Order, baseline *ResourceLedger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)

	for _, c := range pop {
		if c.tasks != nil || math.IsInf(c.fitness, 1) {
			continue // elite carried over, already scored
		}
		c := c
		g.Go(func() error {
			if ctx.Err() != nil {
				// Mark unevaluated so cancellation can't promote it.
				c.fitness = math.Inf(1)
				return nil
			}
			ledger := baseline.Clone()
			tasks, err := o.decode(c.genome, orders, ledger)
			if err != nil {
				c.fitness = math.Inf(1)
				return nil // infeasible genome, not a search failure
			}
			c.tasks = tasks
			c.ledger = ledger
			c.fitness = o.score(tasks, orders, ledger)
			return nil
		})
	}
	return g.Wait()
}

// decode schedules the orders in genome priority order, pulling each
// order's deadline in by its jitter. Any single failure poisons the genome.
func (o *Optimizer) decode(g genome, orders []*model.Order, ledger *ResourceLedger) ([]*model.ScheduledTask, error) {
	var all []*model.ScheduledTask
	for pos, idx := range g.perm {
		tasks, err := o.sched.scheduleOrder(orders[idx], ledger, g.jitter[pos])
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })
	return all, nil
}

// score computes the schedule cost: weighted production span plus idle time
// on scarce resources minus the summed completion margin. Lower is better.
func (o *Optimizer) score(tasks []*model.ScheduledTask, orders []*model.Order, ledger *ResourceLedger) float64 {
	if len(tasks) == 0 {
		return 0
	}

	first, last := tasks[0].StartTime, tasks[0].EndTime
	busy := map[model.ResourceCategory]int{}
	catFirst := map[model.ResourceCategory]time.Time{}
	catLast := map[model.ResourceCategory]time.Time{}
	lastEndByOrder := map[string]time.Time{}

	for _, t := range tasks {
		if t.StartTime.Before(first) {
			first = t.StartTime
		}
		if t.EndTime.After(last) {
			last = t.EndTime
		}
		if t.EndTime.After(lastEndByOrder[t.OrderID]) {
			lastEndByOrder[t.OrderID] = t.EndTime
		}
		for _, cat := range t.Resources {
			busy[cat] += t.Duration()
			if f, ok := catFirst[cat]; !ok || t.StartTime.Before(f) {
				catFirst[cat] = t.StartTime
			}
			if l, ok := catLast[cat]; !ok || t.EndTime.After(l) {
				catLast[cat] = t.EndTime
			}
		}
	}

	span := last.Sub(first).Minutes()

	// Idle is charged only on scarce categories (capacity 1): gaps there
	// serialize everything behind them.
	idle := 0.0
	for cat, mins := range busy {
		if ledger.Capacity(cat) != 1 {
			continue
		}
		window := catLast[cat].Sub(catFirst[cat]).Minutes()
		if gap := window - float64(mins); gap > 0 {
			idle += gap
		}
	}

	margin := 0.0
	for _, ord := range orders {
		deadline, err := o.sched.Deadline(ord)
		if err != nil {
			continue
		}
		if end, ok := lastEndByOrder[ord.ID]; ok {
			margin += deadline.Sub(end).Minutes()
		}
	}

	return o.cfg.SpanWeight*span + o.cfg.IdleWeight*idle - o.cfg.MarginWeight*margin
}

func (o *Optimizer) tournament(pop []*candidate) *candidate {
	best := pop[o.rng.Intn(len(pop))]
	for i := 1; i < tournamentSize; i++ {
		c := pop[o.rng.Intn(len(pop))]
		if c.fitness < best.fitness {
			best = c
		}
	}
	return best
}

// crossover is order crossover (OX): a contiguous segment of parent a's
// permutation is kept in place and the gaps are filled with the remaining
// indices in parent b's order. Jitter is inherited positionally with a
// uniform coin flip.
func (o *Optimizer) crossover(a, b genome) genome {
	n := len(a.perm)
	child := genome{perm: make([]int, n), jitter: make([]time.Duration, n)}
	if n == 1 {
		child.perm[0] = a.perm[0]
		child.jitter[0] = a.jitter[0]
		return child
	}

	lo := o.rng.Intn(n)
	hi := lo + 1 + o.rng.Intn(n-lo)
	taken := make(map[int]bool, hi-lo)
	for i := lo; i < hi; i++ {
		child.perm[i] = a.perm[i]
		taken[a.perm[i]] = true
	}
	pos := 0
	for _, v := range b.perm {
		if taken[v] {
			continue
		}
		for pos >= lo && pos < hi {
			pos++
		}
		child.perm[pos] = v
		pos++
	}

	for i := range child.jitter {
		if o.rng.Intn(2) == 0 {
			child.jitter[i] = a.jitter[i]
		} else {
			child.jitter[i] = b.jitter[i]
		}
	}
	return child
}

// mutate swaps two permutation positions with probability 0.3 and perturbs
// one jitter slot with probability 0.5, clamped to [0, maxJitter].
func (o *Optimizer) mutate(g *genome) {
	n := len(g.perm)
	if n > 1 && o.rng.Float64() < 0.3 {
		i, j := o.rng.Intn(n), o.rng.Intn(n)
		g.perm[i], g.perm[j] = g.perm[j], g.perm[i]
	}
	if o.rng.Float64() < 0.5 {
		i := o.rng.Intn(n)
		delta := time.Duration(o.rng.Int63n(61)-30) * time.Minute
		j := g.jitter[i] + delta
		if j < 0 {
			j = 0
		}
		if j > maxJitter {
			j = maxJitter
		}
		g.jitter[i] = j
	}
}

func (o *Optimizer) deadlines(orders []*model.Order) (map[string]time.Time, error) {
	m := make(map[string]time.Time, len(orders))
	for _, ord := range orders {
		d, err := o.sched.Deadline(ord)
		if err != nil {
			return nil, err
		}
		m[ord.ID] = d
	}
	return m, nil
}

func sortByFitness(pop []*candidate) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].fitness < pop[j].fitness })
}

// firstDecodeError reruns the identity genome serially to surface a concrete
// cause when every candidate was infeasible.
func firstDecodeError(sched *Scheduler, orders []*model.Order, baseline *ResourceLedger) error {
	ledger := baseline.Clone()
	for _, ord := range orders {
		if _, err := sched.ScheduleOrder(ord, ledger); err != nil {
			return err
		}
	}
	return fmt.Errorf("all candidates infeasible")
}
