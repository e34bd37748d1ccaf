package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// AddList appends a named list to a trip.
func (m *Manager) AddList(ctx context.Context, tripID uuid.UUID, name string) (domain.TripList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return domain.TripList{}, fmt.Errorf("service.Manager.AddList: %w", domain.ErrEmptyName)
	}
	l := domain.TripList{ID: uuid.New(), TripID: tripID, Name: strings.TrimSpace(name)}
	l.SortOrder = len(m.graph.Lists(tripID))
	if _, err := m.insert(l); err != nil {
		return domain.TripList{}, fmt.Errorf("service.Manager.AddList: %w", err)
	}
	if err := m.finish(ctx, tripID, l.Ref(), domain.OpInsert); err != nil {
		return l, fmt.Errorf("service.Manager.AddList: %w", err)
	}
	return l, nil
}

// AddListItem appends an unchecked item to a list.
func (m *Manager) AddListItem(ctx context.Context, listID uuid.UUID, text string) (domain.TripListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return domain.TripListItem{}, fmt.Errorf("service.Manager.AddListItem: %w", domain.ErrEmptyText)
	}
	item := domain.TripListItem{ID: uuid.New(), ListID: listID, Text: strings.TrimSpace(text)}
	item.SortOrder = len(m.graph.ListItems(listID))
	trip, err := m.insert(item)
	if err != nil {
		return domain.TripListItem{}, fmt.Errorf("service.Manager.AddListItem: %w", err)
	}
	if err := m.finish(ctx, trip.ID, item.Ref(), domain.OpInsert); err != nil {
		return item, fmt.Errorf("service.Manager.AddListItem: %w", err)
	}
	return item, nil
}

// ToggleListItem flips an item's checked state.
func (m *Manager) ToggleListItem(ctx context.Context, id uuid.UUID) (domain.TripListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, trip, err := updateOwned(m, id, func(i *domain.TripListItem) error {
		i.Checked = !i.Checked
		return nil
	})
	if err != nil {
		return domain.TripListItem{}, fmt.Errorf("service.Manager.ToggleListItem: %w", err)
	}
	if err := m.finish(ctx, trip.ID, item.Ref(), domain.OpUpdate); err != nil {
		return item, fmt.Errorf("service.Manager.ToggleListItem: %w", err)
	}
	return item, nil
}

// PromoteListItem turns a list item into a stop at the end of dayID and
// checks the item off.
func (m *Manager) PromoteListItem(ctx context.Context, itemID, dayID uuid.UUID) (domain.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := graph.Get[domain.TripListItem](m.graph, itemID)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.PromoteListItem: %w", err)
	}
	if err := m.checkEdit(item.Ref()); err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.PromoteListItem: %w", err)
	}
	stop := domain.Stop{
		ID:        uuid.New(),
		DayID:     dayID,
		Name:      item.Text,
		Category:  domain.CategoryOther,
		SortOrder: len(m.graph.Stops(dayID)),
	}
	trip, err := m.insert(stop)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.PromoteListItem: %w", err)
	}
	if _, _, err := updateOwned(m, itemID, func(i *domain.TripListItem) error {
		i.Checked = true
		return nil
	}); err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.PromoteListItem: %w", err)
	}
	if err := m.finish(ctx, trip.ID, stop.Ref(), domain.OpInsert); err != nil {
		return stop, fmt.Errorf("service.Manager.PromoteListItem: %w", err)
	}
	return stop, nil
}

// AddWishlistItem saves a place that is not yet part of any trip.
func (m *Manager) AddWishlistItem(ctx context.Context, item domain.WishlistItem) (domain.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(item.Name) == "" {
		return domain.WishlistItem{}, fmt.Errorf("service.Manager.AddWishlistItem: %w", domain.ErrEmptyName)
	}
	item.ID = uuid.New()
	item.Name = strings.TrimSpace(item.Name)
	item.CreatedAt = m.now().UTC()
	if !item.Category.Valid() {
		item.Category = domain.CategoryAttraction
	}
	if err := m.graph.Put(item); err != nil {
		return domain.WishlistItem{}, fmt.Errorf("service.Manager.AddWishlistItem: %w", err)
	}
	if err := m.finish(ctx, uuid.Nil, item.Ref(), domain.OpInsert); err != nil {
		return item, fmt.Errorf("service.Manager.AddWishlistItem: %w", err)
	}
	return item, nil
}

// PromoteWishlistItem moves a wishlist place into a trip as a stop at the
// end of dayID. The wishlist entry is removed.
func (m *Manager) PromoteWishlistItem(ctx context.Context, itemID, dayID uuid.UUID) (domain.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := graph.Get[domain.WishlistItem](m.graph, itemID)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.PromoteWishlistItem: %w", err)
	}
	stop := domain.Stop{
		ID:         uuid.New(),
		DayID:      dayID,
		Name:       item.Name,
		Coordinate: item.Coordinate,
		Category:   item.Category,
		Notes:      item.Notes,
		Address:    item.Address,
		Phone:      item.Phone,
		Website:    item.Website,
		SortOrder:  len(m.graph.Stops(dayID)),
	}
	trip, err := m.insert(stop)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.PromoteWishlistItem: %w", err)
	}
	if err := m.graph.Delete(item.Ref()); err != nil {
		return domain.Stop{}, fmt.Errorf("service.Manager.PromoteWishlistItem: %w", err)
	}
	if err := m.finish(ctx, trip.ID, stop.Ref(), domain.OpInsert); err != nil {
		return stop, fmt.Errorf("service.Manager.PromoteWishlistItem: %w", err)
	}
	return stop, nil
}
