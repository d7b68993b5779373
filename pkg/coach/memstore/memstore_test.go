package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/trai/pkg/coach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightHistoryKeepsMostRecent(t *testing.T) {
	s := New()
	base := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.AddWeight(coach.WeightEntry{WeightKg: 80 - float64(i)/10, RecordedAt: base.AddDate(0, 0, 4-i)})
	}
	r := coach.DateRange{Start: base, End: base.AddDate(0, 0, 10)}

	all, err := s.WeightHistory(context.Background(), r, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].RecordedAt.Before(all[4].RecordedAt))

	last2, err := s.WeightHistory(context.Background(), r, 2)
	require.NoError(t, err)
	assert.Equal(t, all[3:], last2)
}

func TestRecentWorkoutsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.LogWorkout(ctx, coach.Workout{Type: "cardio", DurationMinutes: 10 * (i + 1), LoggedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	ws, err := s.RecentWorkouts(ctx, coach.DateRange{Start: base, End: base.AddDate(0, 0, 1)}, 2)
	require.NoError(t, err)
	require.Len(t, ws, 2)
	assert.Equal(t, 30, ws[0].DurationMinutes)
	assert.Equal(t, 20, ws[1].DurationMinutes)
}

func TestRememberFactDeduplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, err := s.RememberFact(ctx, coach.Fact{Content: "Vegan", Topic: "diet", Importance: 3})
	require.NoError(t, err)
	b, err := s.RememberFact(ctx, coach.Fact{Content: "vegan", Topic: "diet", Importance: 5})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	facts, err := s.Facts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, 5, facts[0].Importance)
}

func TestForgetFactPrefersImportantMatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.RememberFact(ctx, coach.Fact{Content: "Dislikes dairy desserts", Topic: "food", Importance: 2})
	keep, _ := s.RememberFact(ctx, coach.Fact{Content: "Runs on Sundays", Topic: "schedule", Importance: 4})
	severe, _ := s.RememberFact(ctx, coach.Fact{Content: "Allergic to dairy", Topic: "dairy", Importance: 5})

	f, ok, err := s.ForgetFact(ctx, "Dairy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, severe.ID, f.ID)

	_, ok, err = s.ForgetFact(ctx, "dairy cake")
	require.NoError(t, err)
	assert.False(t, ok)

	facts, _ := s.Facts(ctx)
	require.Len(t, facts, 2)
	assert.Equal(t, keep.ID, facts[1].ID)
}

func TestConcurrentWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.LogWorkout(ctx, coach.Workout{Type: "yoga", DurationMinutes: 20})
		}()
	}
	wg.Wait()
	ws, err := s.RecentWorkouts(ctx, coach.DateRange{Start: time.Now().Add(-time.Minute), End: time.Now().Add(time.Minute)}, 0)
	require.NoError(t, err)
	assert.Len(t, ws, 20)
}
