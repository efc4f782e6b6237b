package engine

import (
	"context"
	"sort"
	"time"

	"github.com/me/bakesched/pkg/model"
)

// localSearch polishes the genetic winner with tabu search over single-task
// shift moves. A move slides one task by a fixed delta while keeping its
// batch chain ordered, the gap buffer respected, the order deadline met and
// every resource within capacity. Recently moved tasks are tabu for a few
// iterations so the search does not oscillate.
func (o *Optimizer) localSearch(ctx context.Context, best *candidate, orders []*model.Order, deadlines map[string]time.Time) *candidate {
	if best.tasks == nil || o.cfg.LocalSearchIters <= 0 {
		return best
	}

	work := &candidate{
		tasks:   cloneTasks(best.tasks),
		ledger:  best.ledger.Clone(),
		fitness: best.fitness,
	}
	chains := groupByBatch(work.tasks)
	immediate := o.immediacyIndex(orders)
	gap := time.Duration(o.sched.kitchen.StepGapBufferMin) * time.Minute

	result := &candidate{tasks: cloneTasks(work.tasks), fitness: work.fitness}
	tabu := map[string]int{}
	moved := 0

	for iter := 0; iter < o.cfg.LocalSearchIters; iter++ {
		if ctx.Err() != nil {
			break
		}

		var bestTask *model.ScheduledTask
		var bestDelta time.Duration
		bestFitness := work.fitness

		for _, chain := range chains {
			for i, t := range chain {
				if until, ok := tabu[t.ID]; ok && iter < until {
					continue
				}
				if !o.movable(immediate, chain, i) {
					continue
				}
				for _, delta := range shiftDeltas {
					if !o.feasibleShift(work.ledger, chain, i, delta, gap, deadlines) {
						continue
					}
					f := o.scoreShifted(work, t, delta, orders)
					if f < bestFitness-convergenceTol {
						bestTask, bestDelta, bestFitness = t, delta, f
					}
				}
			}
		}

		if bestTask == nil {
			break // local optimum
		}

		work.ledger.ReleaseTask(bestTask)
		bestTask.StartTime = bestTask.StartTime.Add(bestDelta)
		bestTask.EndTime = bestTask.EndTime.Add(bestDelta)
		if err := work.ledger.ReserveTask(bestTask); err != nil {
			// feasibleShift already vetted the move; undo and stop.
			bestTask.StartTime = bestTask.StartTime.Add(-bestDelta)
			bestTask.EndTime = bestTask.EndTime.Add(-bestDelta)
			work.ledger.ReserveTask(bestTask)
			break
		}
		work.fitness = bestFitness
		tabu[bestTask.ID] = iter + o.cfg.TabuSize
		moved++

		if work.fitness < result.fitness-convergenceTol {
			result.tasks = cloneTasks(work.tasks)
			result.fitness = work.fitness
		}
	}

	if moved > 0 {
		o.logger.Debug("local search done", "moves", moved, "fitness", result.fitness)
	}
	sort.Slice(result.tasks, func(i, j int) bool {
		return result.tasks[i].StartTime.Before(result.tasks[j].StartTime)
	})
	return result
}

// movable reports whether chain[i] may shift on its own: neither its own
// step nor its successor's step is pinned by a must-follow-immediately
// constraint.
func (o *Optimizer) movable(immediate map[string]bool, chain []*model.ScheduledTask, i int) bool {
	t := chain[i]
	if immediate[t.OrderItemID+"/"+t.Step] {
		return false
	}
	if i+1 < len(chain) && immediate[chain[i+1].OrderItemID+"/"+chain[i+1].Step] {
		return false
	}
	return true
}

// feasibleShift checks a candidate move without committing it: operating
// hours, resource capacity (with the task's own reservation excluded),
// chain ordering with the gap buffer, and the order deadline for the final
// step of a batch.
func (o *Optimizer) feasibleShift(ledger *ResourceLedger, chain []*model.ScheduledTask, i int, delta time.Duration, gap time.Duration, deadlines map[string]time.Time) bool {
	t := chain[i]
	start := t.StartTime.Add(delta)
	end := t.EndTime.Add(delta)

	if i > 0 && start.Before(chain[i-1].EndTime.Add(gap)) {
		return false
	}
	if i+1 < len(chain) && end.Add(gap).After(chain[i+1].StartTime) {
		return false
	}
	if i == len(chain)-1 {
		deadline, ok := deadlines[t.OrderID]
		if !ok || end.After(deadline) {
			return false
		}
	}

	ledger.ReleaseTask(t)
	ok := o.sched.slots.Fits(ledger, t.Resources, start, end)
	ledger.ReserveTask(t)
	return ok
}

// scoreShifted evaluates the fitness the schedule would have after the
// shift, then restores the task.
func (o *Optimizer) scoreShifted(c *candidate, t *model.ScheduledTask, delta time.Duration, orders []*model.Order) float64 {
	t.StartTime = t.StartTime.Add(delta)
	t.EndTime = t.EndTime.Add(delta)
	f := o.score(c.tasks, orders, c.ledger)
	t.StartTime = t.StartTime.Add(-delta)
	t.EndTime = t.EndTime.Add(-delta)
	return f
}

// immediacyIndex maps "orderItemID/stepName" to the step's
// must-follow-immediately flag, for every item in the given orders.
func (o *Optimizer) immediacyIndex(orders []*model.Order) map[string]bool {
	idx := map[string]bool{}
	for _, ord := range orders {
		for _, item := range ord.Items {
			recipe, err := o.recipes.RecipeForProduct(item.Product)
			if err != nil {
				continue
			}
			for _, step := range recipe.Steps {
				idx[item.ID+"/"+step.Name] = step.MustFollowImmediately
			}
		}
	}
	return idx
}

// groupByBatch splits tasks into per-batch chains ordered by start time.
func groupByBatch(tasks []*model.ScheduledTask) [][]*model.ScheduledTask {
	byBatch := map[string][]*model.ScheduledTask{}
	var keys []string
	for _, t := range tasks {
		if _, ok := byBatch[t.BatchID]; !ok {
			keys = append(keys, t.BatchID)
		}
		byBatch[t.BatchID] = append(byBatch[t.BatchID], t)
	}
	sort.Strings(keys)

	chains := make([][]*model.ScheduledTask, 0, len(keys))
	for _, k := range keys {
		chain := byBatch[k]
		sort.Slice(chain, func(i, j int) bool { return chain[i].StartTime.Before(chain[j].StartTime) })
		chains = append(chains, chain)
	}
	return chains
}

func cloneTasks(tasks []*model.ScheduledTask) []*model.ScheduledTask {
	out := make([]*model.ScheduledTask, len(tasks))
	for i, t := range tasks {
		cp := *t
		cp.Resources = append([]model.ResourceCategory(nil), t.Resources...)
		out[i] = &cp
	}
	return out
}
