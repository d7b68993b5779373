package coach

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-go-golems/trai/pkg/prompt"
	"github.com/pkg/errors"
)

const maxPromptFacts = 20

// ContextualFacts summarises the store for the system instruction: the active
// plan, what was eaten today and the most important remembered facts.
func ContextualFacts(ctx context.Context, store Store, now time.Time) (prompt.ContextualFacts, error) {
	ret := prompt.ContextualFacts{Now: now}

	plan, err := store.ActivePlan(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return ret, errors.Wrap(err, "could not load plan")
	default:
		ret.ProfileSummary = planSummary(plan)
	}

	today := startOfDay(now)
	entries, err := store.QueryFood(ctx, DateRange{Start: today, End: today.AddDate(0, 0, 1)})
	if err != nil {
		return ret, errors.Wrap(err, "could not query food log")
	}
	ret.RecentEntriesSummary = entriesSummary(entries)

	facts, err := store.Facts(ctx)
	if err != nil {
		return ret, errors.Wrap(err, "could not load facts")
	}
	sort.SliceStable(facts, func(i, j int) bool {
		if facts[i].Importance != facts[j].Importance {
			return facts[i].Importance > facts[j].Importance
		}
		return facts[i].CreatedAt.After(facts[j].CreatedAt)
	})
	if len(facts) > maxPromptFacts {
		facts = facts[:maxPromptFacts]
	}
	for _, f := range facts {
		ret.RememberedFacts = append(ret.RememberedFacts, fmt.Sprintf("%s (%s)", f.Content, f.Topic))
	}
	return ret, nil
}

func planSummary(p Plan) string {
	var sb strings.Builder
	if p.Goal != "" {
		fmt.Fprintf(&sb, "Goal: %s.\n", p.Goal)
	}
	fmt.Fprintf(&sb, "Daily targets: %d kcal, %dg protein, %dg carbs, %dg fat.\n",
		p.CalorieTarget, p.ProteinTargetG, p.CarbsTargetG, p.FatTargetG)
	if p.WorkoutDaysPerWeek > 0 {
		fmt.Fprintf(&sb, "Trains %d days per week.\n", p.WorkoutDaysPerWeek)
	}
	return sb.String()
}

func entriesSummary(entries []FoodEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	var total Macros
	sb.WriteString("Logged today:\n")
	for _, e := range entries {
		total = total.Add(e.Macros)
		fmt.Fprintf(&sb, "- %s: %s, %d kcal (id %s)\n", e.MealType, e.Name, e.Macros.Calories, e.ID)
	}
	fmt.Fprintf(&sb, "Total: %d kcal, %.0fg protein, %.0fg carbs, %.0fg fat.\n",
		total.Calories, total.ProteinG, total.CarbsG, total.FatG)
	return sb.String()
}
