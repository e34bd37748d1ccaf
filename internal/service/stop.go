package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// StopInput holds the user-editable fields of a stop.
type StopInput struct {
	Name          string
	Coordinate    domain.Coordinate
	Category      domain.Category
	Notes         string
	ArrivalTime   *time.Time
	DepartureTime *time.Time
	Address       string
	Phone         string
	Website       string
}

func (in StopInput) apply(s *domain.Stop) {
	s.Name = strings.TrimSpace(in.Name)
	s.Coordinate = in.Coordinate
	s.Category = in.Category
	if !s.Category.Valid() {
		s.Category = domain.CategoryOther
	}
	s.Notes = in.Notes
	s.ArrivalTime = in.ArrivalTime
	s.DepartureTime = in.DepartureTime
	s.Address = in.Address
	s.Phone = in.Phone
	s.Website = in.Website
}

// AddStop appends a stop to the end of a day's order.
func (m *Manager) AddStop(ctx context.Context, dayID uuid.UUID, in StopInput) (domain.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := domain.ValidateStop(in.Name, in.ArrivalTime, in.DepartureTime); err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.AddStop: %w", err)
	}
	stop := domain.Stop{ID: uuid.New(), DayID: dayID}
	in.apply(&stop)
	stop.SortOrder = len(m.graph.Stops(dayID))
	trip, err := m.insert(stop)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.AddStop: %w", err)
	}
	if err := m.finish(ctx, trip.ID, stop.Ref(), domain.OpInsert); err != nil {
		return stop, fmt.Errorf("service.Manager.AddStop: %w", err)
	}
	return stop, nil
}

// UpdateStop replaces the editable fields of a stop.
func (m *Manager) UpdateStop(ctx context.Context, id uuid.UUID, in StopInput) (domain.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := domain.ValidateStop(in.Name, in.ArrivalTime, in.DepartureTime); err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.UpdateStop: %w", err)
	}
	stop, trip, err := updateOwned(m, id, func(s *domain.Stop) error {
		in.apply(s)
		return nil
	})
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.UpdateStop: %w", err)
	}
	if err := m.finish(ctx, trip.ID, stop.Ref(), domain.OpUpdate); err != nil {
		return stop, fmt.Errorf("service.Manager.UpdateStop: %w", err)
	}
	return stop, nil
}

// MoveStop detaches a stop from its day and appends it to targetDayID.
// The target day may belong to another trip.
func (m *Manager) MoveStop(ctx context.Context, stopID, targetDayID uuid.UUID) (domain.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stop, err := graph.Get[domain.Stop](m.graph, stopID)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.MoveStop: %w", err)
	}
	target := domain.Ref{Kind: domain.KindDay, ID: targetDayID}
	targetTrip, err := m.tripOf(target)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.MoveStop: %w", err)
	}
	sourceTrip, err := m.tripOf(stop.Ref())
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.MoveStop: %w", err)
	}
	for _, ref := range []domain.Ref{stop.Ref(), target} {
		if err := m.checkEdit(ref); err != nil {
			return domain.Stop{}, fmt.Errorf("service.Manager.MoveStop: %w", err)
		}
	}
	if stop.DayID == targetDayID {
		return stop, nil
	}

	source := stop.DayID
	order := len(m.graph.Stops(targetDayID))
	stop, err = graph.Update(m.graph, stopID, func(s *domain.Stop) error {
		s.DayID = targetDayID
		s.SortOrder = order
		return nil
	})
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.MoveStop: %w", err)
	}
	if err := m.renumberStops(m.graph.Stops(source)); err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.MoveStop: %w", err)
	}
	trips := []uuid.UUID{targetTrip.ID}
	if sourceTrip.ID != targetTrip.ID {
		trips = append(trips, sourceTrip.ID)
	}
	if err := m.finishTrips(ctx, trips, stop.Ref(), domain.OpUpdate); err != nil {
		return stop, fmt.Errorf("service.Manager.MoveStop: %w", err)
	}
	return stop, nil
}

// ReorderStops moves the stops at the given offsets of a day's current
// order so they sit before the stop now at index to (len(stops) appends),
// keeping their relative order, then reassigns dense sort orders.
func (m *Manager) ReorderStops(ctx context.Context, dayID uuid.UUID, from []int, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := domain.Ref{Kind: domain.KindDay, ID: dayID}
	trip, err := m.tripOf(day)
	if err != nil {
		return fmt.Errorf("service.Manager.ReorderStops: %w", err)
	}
	if err := m.checkEdit(day); err != nil {
		return fmt.Errorf("service.Manager.ReorderStops: %w", err)
	}
	reordered, err := MoveOffsets(m.graph.Stops(dayID), from, to)
	if err != nil {
		return fmt.Errorf("service.Manager.ReorderStops: %w", err)
	}
	if err := m.renumberStops(reordered); err != nil {
		return fmt.Errorf("service.Manager.ReorderStops: %w", err)
	}
	if err := m.finish(ctx, trip.ID, day, domain.OpUpdate); err != nil {
		return fmt.Errorf("service.Manager.ReorderStops: %w", err)
	}
	return nil
}

// MoveOffsets returns a copy of items with the elements at offsets moved
// before the element at index to, the way list-editing UIs reorder rows.
func MoveOffsets[T any](items []T, offsets []int, to int) ([]T, error) {
	if to < 0 || to > len(items) {
		return nil, fmt.Errorf("destination %d: %w", to, domain.ErrInvalidOffset)
	}
	picked := make(map[int]bool, len(offsets))
	for _, o := range offsets {
		if o < 0 || o >= len(items) {
			return nil, fmt.Errorf("offset %d: %w", o, domain.ErrInvalidOffset)
		}
		picked[o] = true
	}
	sorted := make([]int, 0, len(picked))
	for o := range picked {
		sorted = append(sorted, o)
	}
	sort.Ints(sorted)

	moved := make([]T, 0, len(sorted))
	rest := make([]T, 0, len(items)-len(sorted))
	insertAt := to
	for i, it := range items {
		if picked[i] {
			moved = append(moved, it)
			if i < to {
				insertAt--
			}
			continue
		}
		rest = append(rest, it)
	}
	out := make([]T, 0, len(items))
	out = append(out, rest[:insertAt]...)
	out = append(out, moved...)
	out = append(out, rest[insertAt:]...)
	return out, nil
}

// renumberStops gives stops dense sort orders in slice order.
func (m *Manager) renumberStops(stops []domain.Stop) error {
	for i, s := range stops {
		if s.SortOrder == i {
			continue
		}
		if _, err := graph.Update(m.graph, s.ID, func(st *domain.Stop) error {
			st.SortOrder = i
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteStop removes a stop with its comments, links and todos.
func (m *Manager) DeleteStop(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stop, err := graph.Get[domain.Stop](m.graph, id)
	if err != nil {
		return fmt.Errorf("service.Manager.DeleteStop: %w", err)
	}
	trip, err := m.deleteOwned(stop.Ref())
	if err != nil {
		return fmt.Errorf("service.Manager.DeleteStop: %w", err)
	}
	if err := m.renumberStops(m.graph.Stops(stop.DayID)); err != nil {
		return fmt.Errorf("service.Manager.DeleteStop: %w", err)
	}
	if err := m.finish(ctx, trip.ID, stop.Ref(), domain.OpDelete); err != nil {
		return fmt.Errorf("service.Manager.DeleteStop: %w", err)
	}
	return nil
}

// MarkVisited records whether a stop was visited and, if so, its 1-5
// rating. A rating of 0 marks the stop visited but not yet rated.
// Unvisiting clears the rating and visit time.
func (m *Manager) MarkVisited(ctx context.Context, id uuid.UUID, visited bool, rating int) (domain.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if visited && (rating < 0 || rating > 5) {
		return domain.Stop{}, fmt.Errorf("service.Manager.MarkVisited: %w", domain.ErrInvalidRating)
	}
	now := m.now().UTC()
	stop, trip, err := updateOwned(m, id, func(s *domain.Stop) error {
		s.Visited = visited
		if visited {
			s.VisitedAt = &now
			s.Rating = rating
		} else {
			s.VisitedAt = nil
			s.Rating = 0
		}
		return nil
	})
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.MarkVisited: %w", err)
	}
	if err := m.finish(ctx, trip.ID, stop.Ref(), domain.OpUpdate); err != nil {
		return stop, fmt.Errorf("service.Manager.MarkVisited: %w", err)
	}
	return stop, nil
}

// AddComment adds a timestamped comment to a stop.
func (m *Manager) AddComment(ctx context.Context, stopID uuid.UUID, text string) (domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return domain.Comment{}, fmt.Errorf("service.Manager.AddComment: %w", domain.ErrEmptyText)
	}
	c := domain.Comment{ID: uuid.New(), StopID: stopID, Text: text, CreatedAt: m.now().UTC()}
	trip, err := m.insert(c)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("service.Manager.AddComment: %w", err)
	}
	if err := m.finish(ctx, trip.ID, c.Ref(), domain.OpInsert); err != nil {
		return c, fmt.Errorf("service.Manager.AddComment: %w", err)
	}
	return c, nil
}

// AddLink appends a link to a stop. An empty title defaults to the URL.
func (m *Manager) AddLink(ctx context.Context, stopID uuid.UUID, title, url string) (domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	url = strings.TrimSpace(url)
	if url == "" {
		return domain.Link{}, fmt.Errorf("service.Manager.AddLink: %w", domain.ErrEmptyURL)
	}
	if strings.TrimSpace(title) == "" {
		title = url
	}
	l := domain.Link{ID: uuid.New(), StopID: stopID, Title: title, URL: url}
	l.SortOrder = len(m.graph.Links(stopID))
	trip, err := m.insert(l)
	if err != nil {
		return domain.Link{}, fmt.Errorf("service.Manager.AddLink: %w", err)
	}
	if err := m.finish(ctx, trip.ID, l.Ref(), domain.OpInsert); err != nil {
		return l, fmt.Errorf("service.Manager.AddLink: %w", err)
	}
	return l, nil
}

// AddTodo appends a todo to a stop.
func (m *Manager) AddTodo(ctx context.Context, stopID uuid.UUID, text string) (domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return domain.Todo{}, fmt.Errorf("service.Manager.AddTodo: %w", domain.ErrEmptyText)
	}
	td := domain.Todo{ID: uuid.New(), StopID: stopID, Text: text}
	td.SortOrder = len(m.graph.Todos(stopID))
	trip, err := m.insert(td)
	if err != nil {
		return domain.Todo{}, fmt.Errorf("service.Manager.AddTodo: %w", err)
	}
	if err := m.finish(ctx, trip.ID, td.Ref(), domain.OpInsert); err != nil {
		return td, fmt.Errorf("service.Manager.AddTodo: %w", err)
	}
	return td, nil
}

// ToggleTodo flips a todo's completion.
func (m *Manager) ToggleTodo(ctx context.Context, id uuid.UUID) (domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, trip, err := updateOwned(m, id, func(t *domain.Todo) error {
		t.Completed = !t.Completed
		return nil
	})
	if err != nil {
		return domain.Todo{}, fmt.Errorf("service.Manager.ToggleTodo: %w", err)
	}
	if err := m.finish(ctx, trip.ID, td.Ref(), domain.OpUpdate); err != nil {
		return td, fmt.Errorf("service.Manager.ToggleTodo: %w", err)
	}
	return td, nil
}
