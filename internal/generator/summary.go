package generator

import (
	"cmp"
	"slices"

	"budgetsense/internal/core"
)

// Group aggregates the records sharing one categorical value.
type Group struct {
	Name          string
	Count         int
	MeanAllocated float64
	MeanGrowth    float64 // allocated / previous budget
}

// Summary aggregates a corpus per ministry and per priority level.
type Summary struct {
	Rows         int
	ByMinistry   []Group
	ByPriority   []Group
	MinAllocated float64
	MaxAllocated float64
}

type acc struct {
	count     int
	allocated float64
	growth    float64
}

// Summarize aggregates records. Groups are sorted by name.
func Summarize(records []core.BudgetRecord) Summary {
	s := Summary{Rows: len(records)}
	ministries := map[string]*acc{}
	priorities := map[string]*acc{}

	for i, r := range records {
		if i == 0 || r.AllocatedBudget < s.MinAllocated {
			s.MinAllocated = r.AllocatedBudget
		}
		if i == 0 || r.AllocatedBudget > s.MaxAllocated {
			s.MaxAllocated = r.AllocatedBudget
		}
		add(ministries, r.Ministry, r)
		add(priorities, r.PriorityLevel, r)
	}

	s.ByMinistry = groups(ministries)
	s.ByPriority = groups(priorities)
	return s
}

func add(m map[string]*acc, key string, r core.BudgetRecord) {
	a, ok := m[key]
	if !ok {
		a = &acc{}
		m[key] = a
	}
	a.count++
	a.allocated += r.AllocatedBudget
	if r.PrevBudget != 0 {
		a.growth += r.AllocatedBudget / r.PrevBudget
	}
}

func groups(m map[string]*acc) []Group {
	out := make([]Group, 0, len(m))
	for name, a := range m {
		out = append(out, Group{
			Name:          name,
			Count:         a.count,
			MeanAllocated: core.Round2(a.allocated / float64(a.count)),
			MeanGrowth:    core.Round2(a.growth / float64(a.count)),
		})
	}
	slices.SortFunc(out, func(a, b Group) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
