// Package memstore is an in-memory coach.Store used by the CLI and by tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/trai/pkg/coach"
	"github.com/google/uuid"
	"github.com/huandu/go-clone"
)

type Store struct {
	mu       sync.RWMutex
	food     []coach.FoodEntry
	plan     *coach.Plan
	workouts []coach.Workout
	weights  []coach.WeightEntry
	facts    []coach.Fact
}

var _ coach.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func newID() string {
	return uuid.NewString()
}

// AddFood stores an entry, assigning an ID when it has none.
func (s *Store) AddFood(e coach.FoodEntry) coach.FoodEntry {
	if e.ID == "" {
		e.ID = newID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.food = append(s.food, e)
	return e
}

func (s *Store) SetPlan(p coach.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = &p
}

func (s *Store) AddWeight(w coach.WeightEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = append(s.weights, w)
	sort.SliceStable(s.weights, func(i, j int) bool {
		return s.weights[i].RecordedAt.Before(s.weights[j].RecordedAt)
	})
}

func (s *Store) QueryFood(_ context.Context, r coach.DateRange) ([]coach.FoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []coach.FoodEntry
	for _, e := range s.food {
		if r.Contains(e.LoggedAt) {
			ret = append(ret, e)
		}
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].LoggedAt.Before(ret[j].LoggedAt) })
	return ret, nil
}

func (s *Store) GetFoodEntry(_ context.Context, id string) (coach.FoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.food {
		if e.ID == id {
			return e, nil
		}
	}
	return coach.FoodEntry{}, coach.ErrNotFound
}

func (s *Store) ActivePlan(context.Context) (coach.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return coach.Plan{}, coach.ErrNotFound
	}
	return *s.plan, nil
}

func (s *Store) RecentWorkouts(_ context.Context, r coach.DateRange, limit int) ([]coach.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []coach.Workout
	for _, w := range s.workouts {
		if r.Contains(w.LoggedAt) {
			ret = append(ret, clone.Clone(w).(coach.Workout))
		}
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].LoggedAt.After(ret[j].LoggedAt) })
	if limit > 0 && len(ret) > limit {
		ret = ret[:limit]
	}
	return ret, nil
}

func (s *Store) LogWorkout(_ context.Context, w coach.Workout) (coach.Workout, error) {
	if w.ID == "" {
		w.ID = newID()
	}
	if w.LoggedAt.IsZero() {
		w.LoggedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workouts = append(s.workouts, clone.Clone(w).(coach.Workout))
	return w, nil
}

func (s *Store) WeightHistory(_ context.Context, r coach.DateRange, limit int) ([]coach.WeightEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []coach.WeightEntry
	for _, w := range s.weights {
		if r.Contains(w.RecordedAt) {
			ret = append(ret, w)
		}
	}
	if limit > 0 && len(ret) > limit {
		ret = ret[len(ret)-limit:]
	}
	return ret, nil
}

func (s *Store) Facts(context.Context) ([]coach.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]coach.Fact, len(s.facts))
	copy(ret, s.facts)
	return ret, nil
}

// RememberFact stores f. A fact with the same topic and content replaces the
// older one instead of being duplicated.
func (s *Store) RememberFact(_ context.Context, f coach.Fact) (coach.Fact, error) {
	if f.ID == "" {
		f.ID = newID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.facts {
		if existing.Topic == f.Topic && strings.EqualFold(existing.Content, f.Content) {
			f.ID = existing.ID
			s.facts[i] = f
			return f, nil
		}
	}
	s.facts = append(s.facts, f)
	return f, nil
}

// ForgetFact removes the fact whose topic or content best matches hint. Every
// word of hint must appear in the fact; ties go to the most important, then
// the newest fact.
func (s *Store) ForgetFact(_ context.Context, hint string) (coach.Fact, bool, error) {
	words := strings.Fields(strings.ToLower(hint))
	if len(words) == 0 {
		return coach.Fact{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1
	for i, f := range s.facts {
		hay := strings.ToLower(f.Topic + " " + f.Content)
		matched := true
		for _, w := range words {
			if !strings.Contains(hay, w) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if best < 0 ||
			f.Importance > s.facts[best].Importance ||
			(f.Importance == s.facts[best].Importance && f.CreatedAt.After(s.facts[best].CreatedAt)) {
			best = i
		}
	}
	if best < 0 {
		return coach.Fact{}, false, nil
	}
	f := s.facts[best]
	s.facts = append(s.facts[:best], s.facts[best+1:]...)
	return f, true, nil
}
