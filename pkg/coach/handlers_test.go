package coach_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-go-golems/trai/pkg/coach"
	"github.com/go-go-golems/trai/pkg/coach/memstore"
	"github.com/go-go-golems/trai/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC)

func fixture(t *testing.T) (*memstore.Store, *tools.Dispatcher) {
	t.Helper()
	s := memstore.New()
	s.SetPlan(coach.Plan{CalorieTarget: 2200, ProteinTargetG: 150, CarbsTargetG: 220, FatTargetG: 70, WorkoutDaysPerWeek: 4, Goal: "lose fat"})
	s.AddFood(coach.FoodEntry{ID: "f1", Name: "Oats", MealType: coach.MealBreakfast, Macros: coach.Macros{Calories: 350, ProteinG: 12}, LoggedAt: now.Add(-10 * time.Hour)})
	s.AddFood(coach.FoodEntry{ID: "f2", Name: "Chicken salad", MealType: coach.MealLunch, Macros: coach.Macros{Calories: 550, ProteinG: 45}, LoggedAt: now.Add(-5 * time.Hour)})
	s.AddFood(coach.FoodEntry{ID: "f0", Name: "Pizza", MealType: coach.MealDinner, Macros: coach.Macros{Calories: 900}, LoggedAt: now.AddDate(0, 0, -1)})
	s.AddWeight(coach.WeightEntry{WeightKg: 82.4, RecordedAt: now.AddDate(0, 0, -20)})
	s.AddWeight(coach.WeightEntry{WeightKg: 81.1, RecordedAt: now.AddDate(0, 0, -2)})
	s.AddWeight(coach.WeightEntry{WeightKg: 90, RecordedAt: now.AddDate(0, 0, -90)})

	d, err := coach.NewToolbox(s, coach.WithClock(func() time.Time { return now })).NewDispatcher(tools.DefaultToolConfig())
	require.NoError(t, err)
	return s, d
}

func call(t *testing.T, d *tools.Dispatcher, name string, args map[string]any) tools.Result {
	t.Helper()
	return d.Execute(context.Background(), tools.ToolCallRequest{ID: "c1", Name: name, Args: args}).Result
}

func TestEveryCatalogToolHasAHandler(t *testing.T) {
	handlers := coach.NewToolbox(memstore.New()).Handlers()
	for _, d := range coach.Descriptors() {
		assert.Contains(t, handlers, d.Name)
	}
	assert.Len(t, handlers, len(coach.Descriptors()))
}

func TestNewDispatcherHonorsAllowList(t *testing.T) {
	tb := coach.NewToolbox(memstore.New())

	d, err := tb.NewDispatcher(tools.DefaultToolConfig().WithAllowedTools([]string{coach.ToolQueryFoodLog}))
	require.NoError(t, err)
	offered := d.OfferedTools()
	require.Len(t, offered, 1)
	assert.Equal(t, coach.ToolQueryFoodLog, offered[0].Name)
	res := call(t, d, coach.ToolRememberFact, map[string]any{"content": "Vegetarian", "category": "preference", "topic": "diet"})
	assert.IsType(t, tools.ArgumentError{}, res)

	_, err = tb.NewDispatcher(tools.DefaultToolConfig().WithAllowedTools([]string{"query_food_logs"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query_food_logs")
}

func TestSuggestFoodLog(t *testing.T) {
	_, d := fixture(t)
	res := call(t, d, coach.ToolSuggestFoodLog, map[string]any{
		"name": "Banana", "calories": 105.0, "protein": 1.3, "carbs": "27", "meal_type": "Snack", "emoji": "🍌",
	})
	s, ok := res.(tools.DeferredSuggestion)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, coach.SuggestionFoodLog, s.Kind)
	fs := s.Payload.(coach.FoodSuggestion)
	assert.Equal(t, "Banana", fs.Name)
	assert.Equal(t, coach.MealSnack, fs.MealType)
	assert.Equal(t, coach.Macros{Calories: 105, ProteinG: 1.3, CarbsG: 27}, fs.Macros)

	res = call(t, d, coach.ToolSuggestFoodLog, map[string]any{"name": "Banana", "calories": -5})
	assert.Equal(t, tools.ArgumentError{Field: "calories", Reason: "must be between 0 and 10000"}, res)

	res = call(t, d, coach.ToolSuggestFoodLog, map[string]any{"name": "Banana"})
	assert.Equal(t, tools.ArgumentError{Field: "calories", Reason: "missing required argument"}, res)
}

func TestEditFoodEntry(t *testing.T) {
	_, d := fixture(t)

	res := call(t, d, coach.ToolEditFoodEntry, map[string]any{"entry_id": "f2", "calories": 480, "name": "Chicken salad"})
	s, ok := res.(tools.DeferredSuggestion)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, coach.SuggestionFoodEdit, s.Kind)
	edit := s.Payload.(coach.FoodEditSuggestion)
	assert.Equal(t, "f2", edit.EntryID)
	assert.Equal(t, map[string]any{"calories": 480}, edit.Changes)
	assert.Equal(t, 550, edit.Original.Macros.Calories)

	res = call(t, d, coach.ToolEditFoodEntry, map[string]any{"entry_id": "nope", "calories": 1})
	assert.Equal(t, tools.ArgumentError{Field: "entry_id", Reason: "no food entry with this id"}, res)

	res = call(t, d, coach.ToolEditFoodEntry, map[string]any{"entry_id": "f2", "calories": 550})
	_, isArgErr := res.(tools.ArgumentError)
	assert.True(t, isArgErr)
}

func TestQueryFoodLog(t *testing.T) {
	_, d := fixture(t)

	res := call(t, d, coach.ToolQueryFoodLog, nil)
	dr, ok := res.(tools.DataResult)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, coach.ToolQueryFoodLog, dr.Name)
	p := dr.Payload.(map[string]any)
	assert.Equal(t, 2, p["count"])
	assert.Equal(t, coach.Macros{Calories: 900, ProteinG: 57}, p["totals"])
	assert.Equal(t, map[string]any{"start": "2024-05-10", "end": "2024-05-10"}, p["range"])

	res = call(t, d, coach.ToolQueryFoodLog, map[string]any{"date": "yesterday"})
	p = res.(tools.DataResult).Payload.(map[string]any)
	assert.Equal(t, 1, p["count"])

	res = call(t, d, coach.ToolQueryFoodLog, map[string]any{"start_date": "2024-05-09"})
	p = res.(tools.DataResult).Payload.(map[string]any)
	assert.Equal(t, 3, p["count"])
	assert.Len(t, p["daily_totals"], 2)
}

func TestDateArgumentErrors(t *testing.T) {
	_, d := fixture(t)
	cases := []struct {
		args  map[string]any
		field string
	}{
		{map[string]any{"date": "10/05/2024"}, "date"},
		{map[string]any{"date": "today", "start_date": "2024-05-01"}, "date"},
		{map[string]any{"start_date": "2024-05-10", "end_date": "2024-05-01"}, "end_date"},
		{map[string]any{"start_date": "2020-01-01"}, "start_date"},
	}
	for _, c := range cases {
		res := call(t, d, coach.ToolQueryFoodLog, c.args)
		ae, ok := res.(tools.ArgumentError)
		require.True(t, ok, "args %v got %#v", c.args, res)
		assert.Equal(t, c.field, ae.Field)
	}
}

func TestGetUserPlan(t *testing.T) {
	_, d := fixture(t)
	p := call(t, d, coach.ToolGetUserPlan, nil).(tools.DataResult).Payload.(map[string]any)
	assert.Equal(t, 2200, p["plan"].(coach.Plan).CalorieTarget)

	empty, err := coach.NewToolbox(memstore.New()).NewDispatcher(tools.DefaultToolConfig())
	require.NoError(t, err)
	p = call(t, empty, coach.ToolGetUserPlan, nil).(tools.DataResult).Payload.(map[string]any)
	assert.Nil(t, p["plan"])
}

func TestUpdateUserPlan(t *testing.T) {
	_, d := fixture(t)

	res := call(t, d, coach.ToolUpdateUserPlan, map[string]any{"calorie_target": 2000, "rationale": "Slightly faster fat loss."})
	s, ok := res.(tools.DeferredSuggestion)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, coach.SuggestionPlanUpdate, s.Kind)
	pu := s.Payload.(coach.PlanUpdateSuggestion)
	assert.Equal(t, 2200, pu.Current.CalorieTarget)
	assert.Equal(t, 2000, pu.Proposed.CalorieTarget)
	assert.Equal(t, 150, pu.Proposed.ProteinTargetG)

	res = call(t, d, coach.ToolUpdateUserPlan, map[string]any{"rationale": "nothing"})
	_, isArgErr := res.(tools.ArgumentError)
	assert.True(t, isArgErr)

	res = call(t, d, coach.ToolUpdateUserPlan, map[string]any{"workout_days_per_week": 9, "rationale": "more"})
	assert.Equal(t, tools.ArgumentError{Field: "workout_days_per_week", Reason: "out of range"}, res)
}

func TestLogAndListWorkouts(t *testing.T) {
	s, d := fixture(t)

	res := call(t, d, coach.ToolLogWorkout, map[string]any{
		"type":     "Strength",
		"duration": "45",
		"exercises": []any{
			map[string]any{"name": "Squat", "sets": 5, "reps": 5, "weight_kg": 100},
		},
	})
	dr, ok := res.(tools.DataResult)
	require.True(t, ok, "got %#v", res)
	w := dr.Payload.(map[string]any)["workout"].(coach.Workout)
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, "strength", w.Type)
	assert.Equal(t, 45, w.DurationMinutes)
	require.Len(t, w.Exercises, 1)
	assert.Equal(t, 100.0, w.Exercises[0].WeightKg)

	stored, err := s.RecentWorkouts(context.Background(), coach.DateRange{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "workouts are written immediately")

	p := call(t, d, coach.ToolListRecentWorkouts, map[string]any{"limit": 5}).(tools.DataResult).Payload.(map[string]any)
	assert.Equal(t, 1, p["count"])
	assert.Equal(t, 45, p["total_minutes"])

	res = call(t, d, coach.ToolLogWorkout, map[string]any{"type": "cardio", "duration": 0})
	assert.Equal(t, tools.ArgumentError{Field: "duration", Reason: "must be between 1 and 1440 minutes"}, res)
}

func TestGetWeightHistory(t *testing.T) {
	_, d := fixture(t)
	p := call(t, d, coach.ToolGetWeightHistory, nil).(tools.DataResult).Payload.(map[string]any)
	assert.Equal(t, 2, p["count"])
	assert.Equal(t, 81.1, p["latest_kg"])
	assert.Equal(t, -1.3, p["change_kg"])

	p = call(t, d, coach.ToolGetWeightHistory, map[string]any{"date": "today"}).(tools.DataResult).Payload.(map[string]any)
	assert.Equal(t, 0, p["count"])
	assert.NotContains(t, p, "change_kg")
}

func TestRememberAndForgetFact(t *testing.T) {
	s, d := fixture(t)

	res := call(t, d, coach.ToolRememberFact, map[string]any{"content": "Lactose intolerant", "category": "health", "topic": "Dairy"})
	se, ok := res.(tools.SideEffectRecord)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, coach.SideEffectFactRemembered, se.Kind)
	f := se.Value.(coach.Fact)
	assert.Equal(t, 3, f.Importance)
	assert.Equal(t, "dairy", f.Topic)

	res = call(t, d, coach.ToolRememberFact, map[string]any{"content": "x", "category": "goal", "topic": "y", "importance": 7})
	assert.Equal(t, tools.ArgumentError{Field: "importance", Reason: "must be between 1 and 5"}, res)

	res = call(t, d, coach.ToolForgetFact, map[string]any{"match_hint": "dairy", "reason": "was wrong"})
	se, ok = res.(tools.SideEffectRecord)
	require.True(t, ok, "got %#v", res)
	assert.Equal(t, coach.SideEffectFactForgotten, se.Kind)
	assert.Equal(t, f.ID, se.Value.(coach.Fact).ID)

	facts, err := s.Facts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, facts)

	res = call(t, d, coach.ToolForgetFact, map[string]any{"match_hint": "dairy"})
	assert.Equal(t, tools.NoAction{}, res)
}

type brokenStore struct {
	*memstore.Store
}

func (brokenStore) QueryFood(context.Context, coach.DateRange) ([]coach.FoodEntry, error) {
	return nil, errors.New("database is locked")
}

func TestStoreFailureBecomesErrorPayload(t *testing.T) {
	d, err := coach.NewToolbox(brokenStore{memstore.New()}).NewDispatcher(tools.DefaultToolConfig())
	require.NoError(t, err)

	res := call(t, d, coach.ToolQueryFoodLog, nil)
	fb, ok := res.Feedback()
	require.True(t, ok)
	assert.Contains(t, fb["error"], "database is locked")
}

func TestContextualFacts(t *testing.T) {
	s, _ := fixture(t)
	_, err := s.RememberFact(context.Background(), coach.Fact{Content: "Vegetarian", Topic: "diet", Importance: 5})
	require.NoError(t, err)
	_, err = s.RememberFact(context.Background(), coach.Fact{Content: "Likes running", Topic: "sport", Importance: 2})
	require.NoError(t, err)

	facts, err := coach.ContextualFacts(context.Background(), s, now)
	require.NoError(t, err)
	assert.Contains(t, facts.ProfileSummary, "2200 kcal")
	assert.Contains(t, facts.ProfileSummary, "lose fat")
	assert.Contains(t, facts.RecentEntriesSummary, "Oats")
	assert.NotContains(t, facts.RecentEntriesSummary, "Pizza")
	assert.Contains(t, facts.RecentEntriesSummary, "Total: 900 kcal")
	assert.Equal(t, []string{"Vegetarian (diet)", "Likes running (sport)"}, facts.RememberedFacts)
	assert.Equal(t, now, facts.Now)
}
