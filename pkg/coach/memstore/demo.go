package memstore

import (
	"time"

	"github.com/go-go-golems/trai/pkg/coach"
)

// NewDemo returns a store with a plan, a partial day of food and a few weeks
// of weigh-ins relative to now.
func NewDemo(now time.Time) *Store {
	s := New()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	s.SetPlan(coach.Plan{
		CalorieTarget:      2200,
		ProteinTargetG:     150,
		CarbsTargetG:       230,
		FatTargetG:         70,
		WorkoutDaysPerWeek: 4,
		Goal:               "lose 4 kg while keeping strength",
		UpdatedAt:          day.AddDate(0, 0, -14),
	})

	s.AddFood(coach.FoodEntry{
		Name: "Greek yogurt with berries", MealType: coach.MealBreakfast, ServingSize: "1 bowl",
		Macros:   coach.Macros{Calories: 320, ProteinG: 24, CarbsG: 38, FatG: 8},
		LoggedAt: day.Add(8 * time.Hour),
	})
	s.AddFood(coach.FoodEntry{
		Name: "Chicken burrito bowl", MealType: coach.MealLunch, ServingSize: "1 bowl",
		Macros:   coach.Macros{Calories: 640, ProteinG: 42, CarbsG: 70, FatG: 18},
		LoggedAt: day.Add(13 * time.Hour),
	})

	for i, kg := range []float64{84.2, 83.9, 83.6, 83.8, 83.1} {
		s.AddWeight(coach.WeightEntry{WeightKg: kg, RecordedAt: day.AddDate(0, 0, -28+7*i).Add(7 * time.Hour)})
	}

	s.workouts = append(s.workouts, coach.Workout{
		ID: newID(), Type: "strength", DurationMinutes: 55,
		Exercises: []coach.Exercise{{Name: "Deadlift", Sets: 3, Reps: 5, WeightKg: 120}},
		LoggedAt:  day.AddDate(0, 0, -2).Add(18 * time.Hour),
	})
	return s
}
