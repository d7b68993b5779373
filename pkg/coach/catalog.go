package coach

import "github.com/go-go-golems/trai/pkg/inference/tools"

const (
	ToolSuggestFoodLog     = "suggest_food_log"
	ToolEditFoodEntry      = "edit_food_entry"
	ToolQueryFoodLog       = "query_food_log"
	ToolGetUserPlan        = "get_user_plan"
	ToolUpdateUserPlan     = "update_user_plan"
	ToolListRecentWorkouts = "list_recent_workouts"
	ToolLogWorkout         = "log_workout"
	ToolGetWeightHistory   = "get_weight_history"
	ToolRememberFact       = "remember_fact"
	ToolForgetFact         = "forget_fact"
)

var (
	workoutTypes   = []string{"strength", "cardio", "hiit", "yoga", "mobility", "sports", "other"}
	factCategories = []string{"preference", "goal", "health", "lifestyle", "schedule", "other"}
)

func dateParams(withLimit bool) []tools.Parameter {
	ps := []tools.Parameter{
		{Name: "date", Type: tools.ParamTypeString, Description: "A single day: YYYY-MM-DD, \"today\" or \"yesterday\"."},
		{Name: "start_date", Type: tools.ParamTypeString, Description: "First day of a range (YYYY-MM-DD), inclusive."},
		{Name: "end_date", Type: tools.ParamTypeString, Description: "Last day of a range (YYYY-MM-DD), inclusive. Defaults to today."},
	}
	if withLimit {
		ps = append(ps, tools.Parameter{Name: "limit", Type: tools.ParamTypeInteger, Description: "Maximum number of records to return."})
	}
	return ps
}

func macroParams(required bool) []tools.Parameter {
	return []tools.Parameter{
		{Name: "calories", Type: tools.ParamTypeInteger, Required: required, Description: "Energy in kcal."},
		{Name: "protein", Type: tools.ParamTypeNumber, Description: "Protein in grams."},
		{Name: "carbs", Type: tools.ParamTypeNumber, Description: "Carbohydrates in grams."},
		{Name: "fat", Type: tools.ParamTypeNumber, Description: "Fat in grams."},
	}
}

// Descriptors returns the coach tool set in the order it is offered.
func Descriptors() []tools.ToolDescriptor {
	suggestFood := tools.ToolDescriptor{
		Name: ToolSuggestFoodLog,
		Description: "Propose logging a food the user ate. The user confirms the entry on a card; " +
			"nothing is saved until then.",
		Parameters: append(append([]tools.Parameter{
			{Name: "name", Type: tools.ParamTypeString, Required: true, Description: "Food name as the user would recognise it."},
		}, macroParams(true)...),
			tools.Parameter{Name: "serving_size", Type: tools.ParamTypeString, Description: "Human readable portion, e.g. \"1 medium\"."},
			tools.Parameter{Name: "meal_type", Type: tools.ParamTypeString, Enum: mealTypes},
			tools.Parameter{Name: "emoji", Type: tools.ParamTypeString, Description: "One emoji shown on the card."},
		),
	}

	editFood := tools.ToolDescriptor{
		Name:        ToolEditFoodEntry,
		Description: "Propose changes to an already logged food entry. Only pass the fields that change.",
		Parameters: append(append([]tools.Parameter{
			{Name: "entry_id", Type: tools.ParamTypeString, Required: true, Description: "ID returned by query_food_log."},
			{Name: "name", Type: tools.ParamTypeString},
		}, macroParams(false)...),
			tools.Parameter{Name: "serving_size", Type: tools.ParamTypeString},
			tools.Parameter{Name: "meal_type", Type: tools.ParamTypeString, Enum: mealTypes},
		),
	}

	return []tools.ToolDescriptor{
		suggestFood,
		editFood,
		{
			Name:        ToolQueryFoodLog,
			Description: "Read the user's food log for a day or a date range, with daily totals.",
			Parameters:  dateParams(false),
		},
		{
			Name:        ToolGetUserPlan,
			Description: "Read the user's active nutrition and training plan.",
		},
		{
			Name:        ToolUpdateUserPlan,
			Description: "Propose changes to the active plan. The user confirms them on a card.",
			Parameters: []tools.Parameter{
				{Name: "calorie_target", Type: tools.ParamTypeInteger, Description: "Daily kcal target."},
				{Name: "protein_target", Type: tools.ParamTypeInteger, Description: "Daily protein target in grams."},
				{Name: "carbs_target", Type: tools.ParamTypeInteger, Description: "Daily carbohydrate target in grams."},
				{Name: "fat_target", Type: tools.ParamTypeInteger, Description: "Daily fat target in grams."},
				{Name: "workout_days_per_week", Type: tools.ParamTypeInteger},
				{Name: "goal", Type: tools.ParamTypeString},
				{Name: "rationale", Type: tools.ParamTypeString, Required: true, Description: "One or two sentences the user will read."},
			},
		},
		{
			Name:        ToolListRecentWorkouts,
			Description: "List logged workouts, newest first. Defaults to the last 7 days.",
			Parameters:  dateParams(true),
		},
		{
			Name:        ToolLogWorkout,
			Description: "Save a workout the user completed. This is written immediately.",
			Parameters: []tools.Parameter{
				{Name: "type", Type: tools.ParamTypeString, Required: true, Enum: workoutTypes},
				{Name: "duration", Type: tools.ParamTypeInteger, Required: true, Description: "Duration in minutes."},
				{Name: "exercises", Type: tools.ParamTypeArray, Items: &tools.Parameter{Type: tools.ParamTypeObject},
					Description: "Optional list of {name, sets, reps, weight_kg}."},
				{Name: "notes", Type: tools.ParamTypeString},
			},
		},
		{
			Name:        ToolGetWeightHistory,
			Description: "Read weigh-ins, oldest first, with the change over the period. Defaults to the last 30 days.",
			Parameters:  dateParams(true),
		},
		{
			Name:        ToolRememberFact,
			Description: "Remember a durable fact about the user for future conversations.",
			Parameters: []tools.Parameter{
				{Name: "content", Type: tools.ParamTypeString, Required: true},
				{Name: "category", Type: tools.ParamTypeString, Required: true, Enum: factCategories},
				{Name: "topic", Type: tools.ParamTypeString, Required: true, Description: "Short label, e.g. \"dairy\"."},
				{Name: "importance", Type: tools.ParamTypeInteger, Description: "1 (trivia) to 5 (critical). Defaults to 3."},
			},
		},
		{
			Name:        ToolForgetFact,
			Description: "Forget a previously remembered fact that is wrong or outdated.",
			Parameters: []tools.Parameter{
				{Name: "match_hint", Type: tools.ParamTypeString, Required: true, Description: "Words identifying the fact."},
				{Name: "reason", Type: tools.ParamTypeString},
			},
		},
	}
}

// NewCatalog returns the validated coach catalog.
func NewCatalog() *tools.StaticCatalog {
	return tools.MustStaticCatalog(Descriptors()...)
}
