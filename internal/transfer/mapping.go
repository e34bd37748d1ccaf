package transfer

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// FromGraph captures the subtree of tripID.
func FromGraph(g *graph.Graph, tripID uuid.UUID, now time.Time) (Snapshot, error) {
	trip, err := graph.Get[domain.Trip](g, tripID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("transfer.FromGraph: %w", err)
	}
	s := Snapshot{
		SchemaVersion:  SchemaVersion,
		ExportedAt:     now.UTC(),
		Name:           trip.Name,
		Destination:    trip.Destination,
		StartDate:      trip.StartDate,
		EndDate:        trip.EndDate,
		HasCustomDates: trip.HasCustomDates,
		Status:         trip.Status,
		Notes:          trip.Notes,
		BudgetAmount:   trip.BudgetAmount,
		BudgetCurrency: trip.BudgetCurrency,
	}
	for _, d := range g.Days(tripID) {
		day := Day{
			DayNumber: d.DayNumber,
			Date:      d.Date,
			Location:  d.Location,
			Latitude:  d.Coordinate.Latitude,
			Longitude: d.Coordinate.Longitude,
			Notes:     d.Notes,
		}
		for _, st := range g.Stops(d.ID) {
			day.Stops = append(day.Stops, stopFromGraph(g, st))
		}
		s.Days = append(s.Days, day)
	}
	for _, b := range g.Bookings(tripID) {
		s.Bookings = append(s.Bookings, Booking{
			Type:             b.Type,
			Title:            b.Title,
			ConfirmationCode: b.ConfirmationCode,
			Notes:            b.Notes,
			SortOrder:        b.SortOrder,
			Flight:           b.Flight,
			Hotel:            b.Hotel,
			CarRental:        b.CarRental,
		})
	}
	for _, l := range g.Lists(tripID) {
		list := List{Name: l.Name, SortOrder: l.SortOrder}
		for _, it := range g.ListItems(l.ID) {
			list.Items = append(list.Items, ListItem{Text: it.Text, IsChecked: it.Checked, SortOrder: it.SortOrder})
		}
		s.Lists = append(s.Lists, list)
	}
	for _, e := range g.Expenses(tripID) {
		s.Expenses = append(s.Expenses, Expense{
			Title:        e.Title,
			Amount:       e.Amount,
			Currency:     e.Currency,
			Category:     e.Category,
			DateIncurred: e.DateIncurred,
			Notes:        e.Notes,
			SortOrder:    e.SortOrder,
		})
	}
	return s, nil
}

func stopFromGraph(g *graph.Graph, st domain.Stop) Stop {
	out := Stop{
		Name:             st.Name,
		Latitude:         st.Coordinate.Latitude,
		Longitude:        st.Coordinate.Longitude,
		Category:         st.Category,
		ArrivalTime:      st.ArrivalTime,
		DepartureTime:    st.DepartureTime,
		Notes:            st.Notes,
		SortOrder:        st.SortOrder,
		Visited:          st.Visited,
		VisitedAt:        st.VisitedAt,
		Rating:           st.Rating,
		Address:          st.Address,
		Phone:            st.Phone,
		Website:          st.Website,
		ConfirmationCode: st.ConfirmationCode,
		CheckOutDate:     st.CheckOutDate,
		Airline:          st.Airline,
		FlightNumber:     st.FlightNumber,
		DepartureAirport: st.DepartureAirport,
		ArrivalAirport:   st.ArrivalAirport,
	}
	for _, c := range g.Comments(st.ID) {
		out.Comments = append(out.Comments, Comment{Text: c.Text, CreatedAt: c.CreatedAt})
	}
	for _, l := range g.Links(st.ID) {
		out.Links = append(out.Links, Link{Title: l.Title, URL: l.URL, SortOrder: l.SortOrder})
	}
	for _, td := range g.Todos(st.ID) {
		out.Todos = append(out.Todos, Todo{Text: td.Text, IsCompleted: td.Completed, SortOrder: td.SortOrder})
	}
	return out
}

// Records rebuilds the snapshot as new records with fresh IDs. The trip
// comes first and every record follows its parent, so the slice can be
// inserted in order.
//
// Days are placed inside the trip's range: a day without a date takes the
// date of its day number, a day dated outside the range joins the nearest
// day, and days sharing a date are merged with their stops appended in
// file order. Stop sort orders come out dense per day. An undated trip
// keeps a single day. Day numbers are left for the caller to renumber
// once missing dates are filled.
func (s Snapshot) Records(now time.Time) (domain.Trip, []domain.Record) {
	now = now.UTC()
	trip := domain.Trip{
		ID:             uuid.New(),
		Name:           s.Name,
		Destination:    s.Destination,
		StartDate:      domain.DateOnly(s.StartDate),
		EndDate:        domain.DateOnly(s.EndDate),
		HasCustomDates: s.HasCustomDates,
		Status:         s.Status,
		Notes:          s.Notes,
		BudgetAmount:   s.BudgetAmount,
		BudgetCurrency: s.BudgetCurrency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !trip.Status.Valid() {
		trip.Status = domain.TripStatusPlanning
	}
	if trip.BudgetCurrency == "" {
		trip.BudgetCurrency = domain.DefaultCurrency
	}
	if !trip.HasCustomDates {
		trip.EndDate = trip.StartDate
	}
	recs := []domain.Record{trip}

	type placed struct {
		id    uuid.UUID
		stops int
	}
	byDate := make(map[time.Time]*placed)
	for _, d := range s.Days {
		date := placeDay(trip, d)
		p, ok := byDate[date]
		if !ok {
			p = &placed{id: uuid.New()}
			byDate[date] = p
			recs = append(recs, domain.Day{
				ID:         p.id,
				TripID:     trip.ID,
				Date:       date,
				DayNumber:  d.DayNumber,
				Location:   d.Location,
				Coordinate: domain.Coordinate{Latitude: d.Latitude, Longitude: d.Longitude},
				Notes:      d.Notes,
			})
		}
		sorted := slices.Clone(d.Stops)
		slices.SortStableFunc(sorted, func(a, b Stop) int { return cmp.Compare(a.SortOrder, b.SortOrder) })
		for _, st := range sorted {
			st.SortOrder = p.stops
			p.stops++
			recs = append(recs, st.records(p.id)...)
		}
	}
	for _, b := range s.Bookings {
		recs = append(recs, domain.Booking{
			ID:               uuid.New(),
			TripID:           trip.ID,
			Type:             b.Type,
			Title:            b.Title,
			ConfirmationCode: b.ConfirmationCode,
			Notes:            b.Notes,
			SortOrder:        b.SortOrder,
			Flight:           b.Flight,
			Hotel:            b.Hotel,
			CarRental:        b.CarRental,
		})
	}
	for _, l := range s.Lists {
		list := domain.TripList{ID: uuid.New(), TripID: trip.ID, Name: l.Name, SortOrder: l.SortOrder}
		recs = append(recs, list)
		for _, it := range l.Items {
			recs = append(recs, domain.TripListItem{
				ID:        uuid.New(),
				ListID:    list.ID,
				Text:      it.Text,
				Checked:   it.IsChecked,
				SortOrder: it.SortOrder,
			})
		}
	}
	for _, e := range s.Expenses {
		recs = append(recs, domain.Expense{
			ID:           uuid.New(),
			TripID:       trip.ID,
			Title:        e.Title,
			Amount:       e.Amount,
			Currency:     e.Currency,
			Category:     e.Category,
			DateIncurred: e.DateIncurred,
			Notes:        e.Notes,
			SortOrder:    e.SortOrder,
		})
	}
	return trip, recs
}

func (st Stop) records(dayID uuid.UUID) []domain.Record {
	category := st.Category
	if !category.Valid() {
		category = domain.CategoryOther
	}
	stop := domain.Stop{
		ID:               uuid.New(),
		DayID:            dayID,
		Name:             st.Name,
		Coordinate:       domain.Coordinate{Latitude: st.Latitude, Longitude: st.Longitude},
		Category:         category,
		ArrivalTime:      st.ArrivalTime,
		DepartureTime:    st.DepartureTime,
		Notes:            st.Notes,
		SortOrder:        st.SortOrder,
		Visited:          st.Visited,
		VisitedAt:        st.VisitedAt,
		Rating:           st.Rating,
		Address:          st.Address,
		Phone:            st.Phone,
		Website:          st.Website,
		ConfirmationCode: st.ConfirmationCode,
		CheckOutDate:     st.CheckOutDate,
		Airline:          st.Airline,
		FlightNumber:     st.FlightNumber,
		DepartureAirport: st.DepartureAirport,
		ArrivalAirport:   st.ArrivalAirport,
	}
	recs := []domain.Record{stop}
	for _, c := range st.Comments {
		recs = append(recs, domain.Comment{ID: uuid.New(), StopID: stop.ID, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	for _, l := range st.Links {
		recs = append(recs, domain.Link{ID: uuid.New(), StopID: stop.ID, Title: l.Title, URL: l.URL, SortOrder: l.SortOrder})
	}
	for _, td := range st.Todos {
		recs = append(recs, domain.Todo{ID: uuid.New(), StopID: stop.ID, Text: td.Text, Completed: td.IsCompleted, SortOrder: td.SortOrder})
	}
	return recs
}

// placeDay returns the date d is imported on, inside the trip's range.
func placeDay(trip domain.Trip, d Day) time.Time {
	date := domain.DateOnly(d.Date)
	if d.Date.IsZero() {
		date = trip.StartDate.AddDate(0, 0, max(d.DayNumber, 1)-1)
	}
	if date.Before(trip.StartDate) {
		return trip.StartDate
	}
	if date.After(trip.EndDate) {
		return trip.EndDate
	}
	return date
}
