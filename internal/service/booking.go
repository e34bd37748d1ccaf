package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/bookingmail"
	"github.com/pkordes/tripwit/internal/domain"
)

// AddBooking validates b and appends it to the trip's bookings. ID, TripID
// and SortOrder are assigned here.
func (m *Manager) AddBooking(ctx context.Context, tripID uuid.UUID, b domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.addBooking(tripID, b)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.Manager.AddBooking: %w", err)
	}
	if err := m.finish(ctx, tripID, b.Ref(), domain.OpInsert); err != nil {
		return b, fmt.Errorf("service.Manager.AddBooking: %w", err)
	}
	return b, nil
}

// AddParsedBookings adds the drafts produced by the booking email parser.
// Nothing is added when any draft fails validation.
func (m *Manager) AddParsedBookings(ctx context.Context, tripID uuid.UUID, parsed []bookingmail.ParsedBooking) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drafts := make([]domain.Booking, 0, len(parsed))
	for _, p := range parsed {
		b := p.Booking()
		if err := domain.ValidateBooking(b); err != nil {
			return nil, fmt.Errorf("service.Manager.AddParsedBookings: %w", err)
		}
		drafts = append(drafts, b)
	}
	out := make([]domain.Booking, 0, len(drafts))
	for _, d := range drafts {
		b, err := m.addBooking(tripID, d)
		if err != nil {
			return nil, fmt.Errorf("service.Manager.AddParsedBookings: %w", err)
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := m.finish(ctx, tripID, domain.Ref{Kind: domain.KindTrip, ID: tripID}, domain.OpUpdate); err != nil {
		return out, fmt.Errorf("service.Manager.AddParsedBookings: %w", err)
	}
	return out, nil
}

func (m *Manager) addBooking(tripID uuid.UUID, b domain.Booking) (domain.Booking, error) {
	if err := domain.ValidateBooking(b); err != nil {
		return domain.Booking{}, err
	}
	if !b.Type.Valid() {
		b.Type = domain.BookingOther
	}
	b.ID = uuid.New()
	b.TripID = tripID
	b.Title = strings.TrimSpace(b.Title)
	b.SortOrder = len(m.graph.Bookings(tripID))
	if _, err := m.insert(b); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

// DeleteBooking removes a booking.
func (m *Manager) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := domain.Ref{Kind: domain.KindBooking, ID: id}
	trip, err := m.deleteOwned(ref)
	if err != nil {
		return fmt.Errorf("service.Manager.DeleteBooking: %w", err)
	}
	if err := m.finish(ctx, trip.ID, ref, domain.OpDelete); err != nil {
		return fmt.Errorf("service.Manager.DeleteBooking: %w", err)
	}
	return nil
}

// ExpenseInput holds the fields of a new expense. A zero DateIncurred
// defaults to today and an empty Currency to the trip's budget currency.
type ExpenseInput struct {
	Title        string
	Amount       float64
	Currency     string
	Category     string
	DateIncurred time.Time
	Notes        string
}

// AddExpense validates in and appends an expense to the trip.
func (m *Manager) AddExpense(ctx context.Context, tripID uuid.UUID, in ExpenseInput) (domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := domain.ValidateExpense(in.Title, in.Amount); err != nil {
		return domain.Expense{}, fmt.Errorf("service.Manager.AddExpense: %w", err)
	}
	trip, err := m.Trip(tripID)
	if err != nil {
		return domain.Expense{}, fmt.Errorf("service.Manager.AddExpense: %w", err)
	}
	e := domain.Expense{
		ID:           uuid.New(),
		TripID:       tripID,
		Title:        strings.TrimSpace(in.Title),
		Amount:       in.Amount,
		Currency:     in.Currency,
		Category:     in.Category,
		DateIncurred: in.DateIncurred,
		Notes:        in.Notes,
		SortOrder:    len(m.graph.Expenses(tripID)),
	}
	if e.Currency == "" {
		e.Currency = trip.BudgetCurrency
	}
	e.Currency = currencyOr(e.Currency)
	if e.DateIncurred.IsZero() {
		e.DateIncurred = domain.DateOnly(m.now())
	}
	if _, err := m.insert(e); err != nil {
		return domain.Expense{}, fmt.Errorf("service.Manager.AddExpense: %w", err)
	}
	if err := m.finish(ctx, tripID, e.Ref(), domain.OpInsert); err != nil {
		return e, fmt.Errorf("service.Manager.AddExpense: %w", err)
	}
	return e, nil
}

// DeleteExpense removes an expense.
func (m *Manager) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := domain.Ref{Kind: domain.KindExpense, ID: id}
	trip, err := m.deleteOwned(ref)
	if err != nil {
		return fmt.Errorf("service.Manager.DeleteExpense: %w", err)
	}
	if err := m.finish(ctx, trip.ID, ref, domain.OpDelete); err != nil {
		return fmt.Errorf("service.Manager.DeleteExpense: %w", err)
	}
	return nil
}
