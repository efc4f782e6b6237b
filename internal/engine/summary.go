package engine

import (
	"sort"

	"github.com/me/bakesched/internal/config"
	"github.com/me/bakesched/pkg/model"
)

// BuildDailySummary aggregates one day's tasks into counts, the production
// window and per-resource utilization. Utilization is busy minutes over the
// kitchen's open minutes times the category's capacity.
func BuildDailySummary(date string, tasks []*model.ScheduledTask, kitchen config.KitchenConfig) *model.DailySummary {
	summary := &model.DailySummary{
		Date:        date,
		TotalTasks:  len(tasks),
		Utilization: []model.ResourceUtilization{},
	}
	if len(tasks) == 0 {
		return summary
	}

	orders := map[string]bool{}
	busy := map[model.ResourceCategory]int{}
	first, last := tasks[0].StartTime, tasks[0].EndTime
	for _, t := range tasks {
		orders[t.OrderID] = true
		if t.StartTime.Before(first) {
			first = t.StartTime
		}
		if t.EndTime.After(last) {
			last = t.EndTime
		}
		for _, cat := range t.Resources {
			busy[cat] += t.Duration()
		}
	}
	summary.TotalOrders = len(orders)
	summary.StartTime = &first
	summary.EndTime = &last

	open, close := kitchen.Hours.WindowOn(first)
	windowMin := int(close.Sub(open).Minutes())

	cats := make([]model.ResourceCategory, 0, len(busy))
	for cat := range busy {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	for _, cat := range cats {
		capacity := kitchen.Capacities[cat]
		if capacity <= 0 {
			capacity = 1
		}
		total := windowMin * capacity
		pct := 0.0
		if total > 0 {
			pct = float64(busy[cat]) / float64(total) * 100
		}
		summary.Utilization = append(summary.Utilization, model.ResourceUtilization{
			Resource:     cat,
			BusyMinutes:  busy[cat],
			TotalMinutes: total,
			Percent:      pct,
		})
	}
	return summary
}
