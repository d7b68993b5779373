// Package coach binds the nutrition and fitness tool set to its data-access
// collaborators.
package coach

import (
	"time"

	"github.com/go-go-golems/trai/pkg/inference/tools"
)

// Suggestion kinds. At most one of each survives a run.
const (
	SuggestionFoodLog    tools.SuggestionKind = "food_log"
	SuggestionFoodEdit   tools.SuggestionKind = "food_edit"
	SuggestionPlanUpdate tools.SuggestionKind = "plan_update"
)

// Side-effect kinds.
const (
	SideEffectFactRemembered = "fact_remembered"
	SideEffectFactForgotten  = "fact_forgotten"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

var mealTypes = []string{string(MealBreakfast), string(MealLunch), string(MealDinner), string(MealSnack)}

type Macros struct {
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		ProteinG: m.ProteinG + o.ProteinG,
		CarbsG:   m.CarbsG + o.CarbsG,
		FatG:     m.FatG + o.FatG,
	}
}

type FoodEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MealType    MealType  `json:"meal_type,omitempty"`
	ServingSize string    `json:"serving_size,omitempty"`
	Macros      Macros    `json:"macros"`
	LoggedAt    time.Time `json:"logged_at"`
}

// FoodSuggestion is the card shown for a proposed food log entry.
type FoodSuggestion struct {
	Name        string   `json:"name"`
	MealType    MealType `json:"meal_type,omitempty"`
	ServingSize string   `json:"serving_size,omitempty"`
	Emoji       string   `json:"emoji,omitempty"`
	Macros      Macros   `json:"macros"`
}

// FoodEditSuggestion proposes changes to an existing entry. Only the fields
// present in Changes are modified.
type FoodEditSuggestion struct {
	EntryID  string         `json:"entry_id"`
	Original FoodEntry      `json:"original"`
	Changes  map[string]any `json:"changes"`
}

type Plan struct {
	CalorieTarget      int       `json:"calorie_target"`
	ProteinTargetG     int       `json:"protein_target_g"`
	CarbsTargetG       int       `json:"carbs_target_g"`
	FatTargetG         int       `json:"fat_target_g"`
	WorkoutDaysPerWeek int       `json:"workout_days_per_week"`
	Goal               string    `json:"goal,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PlanUpdateSuggestion proposes a new plan next to the current one.
type PlanUpdateSuggestion struct {
	Current   Plan   `json:"current"`
	Proposed  Plan   `json:"proposed"`
	Rationale string `json:"rationale"`
}

type Exercise struct {
	Name     string  `json:"name"`
	Sets     int     `json:"sets,omitempty"`
	Reps     int     `json:"reps,omitempty"`
	WeightKg float64 `json:"weight_kg,omitempty"`
}

type Workout struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	DurationMinutes int        `json:"duration_minutes"`
	Exercises       []Exercise `json:"exercises,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	LoggedAt        time.Time  `json:"logged_at"`
}

type WeightEntry struct {
	WeightKg   float64   `json:"weight_kg"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Fact struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	Topic      string    `json:"topic"`
	Importance int       `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}
