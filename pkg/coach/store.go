package coach

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by stores when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// DateRange is a half-open interval [Start, End) in the user's local time.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

type FoodLog interface {
	QueryFood(ctx context.Context, r DateRange) ([]FoodEntry, error)
	GetFoodEntry(ctx context.Context, id string) (FoodEntry, error)
}

type PlanStore interface {
	ActivePlan(ctx context.Context) (Plan, error)
}

type WorkoutStore interface {
	// RecentWorkouts returns workouts in r, newest first, at most limit of
	// them when limit > 0.
	RecentWorkouts(ctx context.Context, r DateRange, limit int) ([]Workout, error)
	LogWorkout(ctx context.Context, w Workout) (Workout, error)
}

type WeightStore interface {
	// WeightHistory returns entries in r, oldest first, keeping the most
	// recent limit entries when limit > 0.
	WeightHistory(ctx context.Context, r DateRange, limit int) ([]WeightEntry, error)
}

type MemoryStore interface {
	Facts(ctx context.Context) ([]Fact, error)
	RememberFact(ctx context.Context, f Fact) (Fact, error)
	// ForgetFact removes the best match for hint. The boolean is false when
	// nothing matched.
	ForgetFact(ctx context.Context, hint string) (Fact, bool, error)
}

// Store is everything the coach tools read and write.
type Store interface {
	FoodLog
	PlanStore
	WorkoutStore
	WeightStore
	MemoryStore
}
