package coach

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-go-golems/trai/pkg/helpers"
	"github.com/go-go-golems/trai/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultFoodDays    = 1
	defaultWorkoutDays = 7
	defaultWeightDays  = 30
	defaultListLimit   = 10
	maxListLimit       = 50
	defaultImportance  = 3
)

// Toolbox implements the coach tools on top of a Store.
type Toolbox struct {
	store Store
	now   func() time.Time
}

type ToolboxOption func(*Toolbox)

// WithClock overrides the clock used to resolve "today" and to stamp writes.
func WithClock(now func() time.Time) ToolboxOption {
	return func(tb *Toolbox) { tb.now = now }
}

func NewToolbox(store Store, opts ...ToolboxOption) *Toolbox {
	tb := &Toolbox{store: store, now: time.Now}
	for _, opt := range opts {
		opt(tb)
	}
	return tb
}

// Handlers returns one handler per catalog entry.
func (tb *Toolbox) Handlers() map[string]tools.Handler {
	return map[string]tools.Handler{
		ToolSuggestFoodLog:     tools.NewTypedHandler(tb.suggestFoodLog),
		ToolEditFoodEntry:      tools.NewTypedHandler(tb.editFoodEntry),
		ToolQueryFoodLog:       tools.NewTypedHandler(tb.queryFoodLog),
		ToolGetUserPlan:        tools.NewTypedHandler(tb.getUserPlan),
		ToolUpdateUserPlan:     tools.NewTypedHandler(tb.updateUserPlan),
		ToolListRecentWorkouts: tools.NewTypedHandler(tb.listRecentWorkouts),
		ToolLogWorkout:         tools.NewTypedHandler(tb.logWorkout),
		ToolGetWeightHistory:   tools.NewTypedHandler(tb.getWeightHistory),
		ToolRememberFact:       tools.NewTypedHandler(tb.rememberFact),
		ToolForgetFact:         tools.NewTypedHandler(tb.forgetFact),
	}
}

// NewDispatcher returns a dispatcher over the coach catalog, restricted to
// cfg.AllowedTools, with the handler of every remaining tool registered.
func (tb *Toolbox) NewDispatcher(cfg tools.ToolConfig) (*tools.Dispatcher, error) {
	catalog, err := NewCatalog().Filter(cfg.AllowedTools)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tool allow list")
	}
	opts := []tools.DispatcherOption{tools.WithToolConfig(cfg)}
	for name, h := range tb.Handlers() {
		if _, ok := catalog.Lookup(name); !ok {
			continue
		}
		opts = append(opts, tools.WithHandler(name, h))
	}
	return tools.NewDispatcher(catalog, opts...)
}

type macroArgs struct {
	Calories *int     `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
}

func (m macroArgs) check() *tools.ArgumentError {
	if m.Calories != nil && (*m.Calories < 0 || *m.Calories > 10000) {
		return &tools.ArgumentError{Field: "calories", Reason: "must be between 0 and 10000"}
	}
	for _, g := range []struct {
		field string
		v     *float64
	}{{"protein", m.Protein}, {"carbs", m.Carbs}, {"fat", m.Fat}} {
		if g.v != nil && (*g.v < 0 || math.IsNaN(*g.v)) {
			return &tools.ArgumentError{Field: g.field, Reason: "must not be negative"}
		}
	}
	return nil
}

func (m macroArgs) macros() Macros {
	return Macros{
		Calories: helpers.Deref(m.Calories, 0),
		ProteinG: helpers.Deref(m.Protein, 0),
		CarbsG:   helpers.Deref(m.Carbs, 0),
		FatG:     helpers.Deref(m.Fat, 0),
	}
}

type suggestFoodInput struct {
	Name string `json:"name"`
	macroArgs
	ServingSize string `json:"serving_size"`
	MealType    string `json:"meal_type"`
	Emoji       string `json:"emoji"`
}

func (tb *Toolbox) suggestFoodLog(_ context.Context, in suggestFoodInput) (tools.Result, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return tools.ArgumentError{Field: "name", Reason: "must not be empty"}, nil
	}
	if ae := in.check(); ae != nil {
		return *ae, nil
	}
	return tools.DeferredSuggestion{
		Kind: SuggestionFoodLog,
		Payload: FoodSuggestion{
			Name:        name,
			MealType:    MealType(in.MealType),
			ServingSize: strings.TrimSpace(in.ServingSize),
			Emoji:       in.Emoji,
			Macros:      in.macros(),
		},
	}, nil
}

type editFoodInput struct {
	EntryID string  `json:"entry_id"`
	Name    *string `json:"name"`
	macroArgs
	ServingSize *string `json:"serving_size"`
	MealType    *string `json:"meal_type"`
}

func (tb *Toolbox) editFoodEntry(ctx context.Context, in editFoodInput) (tools.Result, error) {
	if ae := in.check(); ae != nil {
		return *ae, nil
	}
	entry, err := tb.store.GetFoodEntry(ctx, in.EntryID)
	if errors.Is(err, ErrNotFound) {
		return tools.ArgumentError{Field: "entry_id", Reason: "no food entry with this id"}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not load food entry")
	}

	changes := map[string]any{}
	if in.Name != nil && strings.TrimSpace(*in.Name) != entry.Name {
		changes["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Calories != nil && *in.Calories != entry.Macros.Calories {
		changes["calories"] = *in.Calories
	}
	if in.Protein != nil && *in.Protein != entry.Macros.ProteinG {
		changes["protein_g"] = *in.Protein
	}
	if in.Carbs != nil && *in.Carbs != entry.Macros.CarbsG {
		changes["carbs_g"] = *in.Carbs
	}
	if in.Fat != nil && *in.Fat != entry.Macros.FatG {
		changes["fat_g"] = *in.Fat
	}
	if in.ServingSize != nil && *in.ServingSize != entry.ServingSize {
		changes["serving_size"] = *in.ServingSize
	}
	if in.MealType != nil && MealType(*in.MealType) != entry.MealType {
		changes["meal_type"] = *in.MealType
	}
	if len(changes) == 0 {
		return tools.ArgumentError{Field: "entry_id", Reason: "no fields differ from the logged entry"}, nil
	}

	return tools.DeferredSuggestion{
		Kind: SuggestionFoodEdit,
		Payload: FoodEditSuggestion{
			EntryID:  entry.ID,
			Original: entry,
			Changes:  changes,
		},
	}, nil
}

type dailyTotal struct {
	Date   string `json:"date"`
	Macros Macros `json:"macros"`
}

func (tb *Toolbox) queryFoodLog(ctx context.Context, in dateArgs) (tools.Result, error) {
	r, ae := in.resolve(tb.now(), defaultFoodDays)
	if ae != nil {
		return *ae, nil
	}
	entries, err := tb.store.QueryFood(ctx, r)
	if err != nil {
		return nil, errors.Wrap(err, "could not query food log")
	}

	var total Macros
	byDay := map[string]Macros{}
	for _, e := range entries {
		total = total.Add(e.Macros)
		day := e.LoggedAt.In(r.Start.Location()).Format(dateLayout)
		byDay[day] = byDay[day].Add(e.Macros)
	}
	daily := make([]dailyTotal, 0, len(byDay))
	for day, m := range byDay {
		daily = append(daily, dailyTotal{Date: day, Macros: m})
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	if entries == nil {
		entries = []FoodEntry{}
	}
	return tools.DataResult{Payload: map[string]any{
		"range":        r.payload(),
		"entries":      entries,
		"count":        len(entries),
		"totals":       total,
		"daily_totals": daily,
	}}, nil
}

type noArgs struct{}

func (tb *Toolbox) getUserPlan(ctx context.Context, _ noArgs) (tools.Result, error) {
	plan, err := tb.store.ActivePlan(ctx)
	if errors.Is(err, ErrNotFound) {
		return tools.DataResult{Payload: map[string]any{
			"plan":    nil,
			"message": "the user has no active plan",
		}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not load plan")
	}
	return tools.DataResult{Payload: map[string]any{"plan": plan}}, nil
}

type updatePlanInput struct {
	CalorieTarget      *int    `json:"calorie_target"`
	ProteinTarget      *int    `json:"protein_target"`
	CarbsTarget        *int    `json:"carbs_target"`
	FatTarget          *int    `json:"fat_target"`
	WorkoutDaysPerWeek *int    `json:"workout_days_per_week"`
	Goal               *string `json:"goal"`
	Rationale          string  `json:"rationale"`
}

func (tb *Toolbox) updateUserPlan(ctx context.Context, in updatePlanInput) (tools.Result, error) {
	current, err := tb.store.ActivePlan(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "could not load plan")
	}

	proposed := current
	changed := false
	for _, f := range []struct {
		field string
		v     *int
		dst   *int
		min   int
		max   int
	}{
		{"calorie_target", in.CalorieTarget, &proposed.CalorieTarget, 800, 10000},
		{"protein_target", in.ProteinTarget, &proposed.ProteinTargetG, 0, 1000},
		{"carbs_target", in.CarbsTarget, &proposed.CarbsTargetG, 0, 2000},
		{"fat_target", in.FatTarget, &proposed.FatTargetG, 0, 1000},
		{"workout_days_per_week", in.WorkoutDaysPerWeek, &proposed.WorkoutDaysPerWeek, 0, 7},
	} {
		if f.v == nil {
			continue
		}
		if *f.v < f.min || *f.v > f.max {
			return tools.ArgumentError{Field: f.field, Reason: "out of range"}, nil
		}
		if *f.v != *f.dst {
			*f.dst = *f.v
			changed = true
		}
	}
	if in.Goal != nil && strings.TrimSpace(*in.Goal) != current.Goal {
		proposed.Goal = strings.TrimSpace(*in.Goal)
		changed = true
	}
	if !changed {
		return tools.ArgumentError{Field: "calorie_target", Reason: "no plan values differ from the active plan"}, nil
	}
	proposed.UpdatedAt = tb.now()

	return tools.DeferredSuggestion{
		Kind: SuggestionPlanUpdate,
		Payload: PlanUpdateSuggestion{
			Current:   current,
			Proposed:  proposed,
			Rationale: strings.TrimSpace(in.Rationale),
		},
	}, nil
}

type listInput struct {
	dateArgs
	Limit *int `json:"limit"`
}

func (in listInput) limit() int {
	n := helpers.Deref(in.Limit, defaultListLimit)
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func (tb *Toolbox) listRecentWorkouts(ctx context.Context, in listInput) (tools.Result, error) {
	r, ae := in.resolve(tb.now(), defaultWorkoutDays)
	if ae != nil {
		return *ae, nil
	}
	ws, err := tb.store.RecentWorkouts(ctx, r, in.limit())
	if err != nil {
		return nil, errors.Wrap(err, "could not list workouts")
	}
	minutes := 0
	for _, w := range ws {
		minutes += w.DurationMinutes
	}
	if ws == nil {
		ws = []Workout{}
	}
	return tools.DataResult{Payload: map[string]any{
		"range":         r.payload(),
		"workouts":      ws,
		"count":         len(ws),
		"total_minutes": minutes,
	}}, nil
}

type logWorkoutInput struct {
	Type      string     `json:"type"`
	Duration  int        `json:"duration"`
	Exercises []Exercise `json:"exercises"`
	Notes     string     `json:"notes"`
}

func (tb *Toolbox) logWorkout(ctx context.Context, in logWorkoutInput) (tools.Result, error) {
	if in.Duration <= 0 || in.Duration > 24*60 {
		return tools.ArgumentError{Field: "duration", Reason: "must be between 1 and 1440 minutes"}, nil
	}
	for _, e := range in.Exercises {
		if strings.TrimSpace(e.Name) == "" {
			return tools.ArgumentError{Field: "exercises", Reason: "every exercise needs a name"}, nil
		}
	}
	w, err := tb.store.LogWorkout(ctx, Workout{
		Type:            in.Type,
		DurationMinutes: in.Duration,
		Exercises:       in.Exercises,
		Notes:           strings.TrimSpace(in.Notes),
		LoggedAt:        tb.now(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not log workout")
	}
	log.Debug().Str("workout_id", w.ID).Str("type", w.Type).Msg("coach: workout logged")
	return tools.DataResult{Payload: map[string]any{
		"logged":  true,
		"workout": w,
	}}, nil
}

func (tb *Toolbox) getWeightHistory(ctx context.Context, in listInput) (tools.Result, error) {
	r, ae := in.resolve(tb.now(), defaultWeightDays)
	if ae != nil {
		return *ae, nil
	}
	entries, err := tb.store.WeightHistory(ctx, r, in.limit())
	if err != nil {
		return nil, errors.Wrap(err, "could not load weight history")
	}
	payload := map[string]any{
		"range":   r.payload(),
		"entries": entries,
		"count":   len(entries),
	}
	if len(entries) == 0 {
		payload["entries"] = []WeightEntry{}
		return tools.DataResult{Payload: payload}, nil
	}
	first, last := entries[0], entries[len(entries)-1]
	payload["latest_kg"] = last.WeightKg
	payload["change_kg"] = math.Round((last.WeightKg-first.WeightKg)*10) / 10
	return tools.DataResult{Payload: payload}, nil
}

type rememberInput struct {
	Content    string `json:"content"`
	Category   string `json:"category"`
	Topic      string `json:"topic"`
	Importance *int   `json:"importance"`
}

func (tb *Toolbox) rememberFact(ctx context.Context, in rememberInput) (tools.Result, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return tools.ArgumentError{Field: "content", Reason: "must not be empty"}, nil
	}
	importance := defaultImportance
	if in.Importance != nil {
		importance = *in.Importance
	}
	if importance < 1 || importance > 5 {
		return tools.ArgumentError{Field: "importance", Reason: "must be between 1 and 5"}, nil
	}
	f, err := tb.store.RememberFact(ctx, Fact{
		Content:    content,
		Category:   in.Category,
		Topic:      strings.ToLower(strings.TrimSpace(in.Topic)),
		Importance: importance,
		CreatedAt:  tb.now(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not save fact")
	}
	return tools.SideEffectRecord{Kind: SideEffectFactRemembered, Value: f}, nil
}

type forgetInput struct {
	MatchHint string `json:"match_hint"`
	Reason    string `json:"reason"`
}

func (tb *Toolbox) forgetFact(ctx context.Context, in forgetInput) (tools.Result, error) {
	hint := strings.TrimSpace(in.MatchHint)
	if hint == "" {
		return tools.ArgumentError{Field: "match_hint", Reason: "must not be empty"}, nil
	}
	f, ok, err := tb.store.ForgetFact(ctx, hint)
	if err != nil {
		return nil, errors.Wrap(err, "could not forget fact")
	}
	if !ok {
		return tools.NoAction{}, nil
	}
	log.Debug().Str("fact_id", f.ID).Str("reason", in.Reason).Msg("coach: fact forgotten")
	return tools.SideEffectRecord{Kind: SideEffectFactForgotten, Value: f}, nil
}
