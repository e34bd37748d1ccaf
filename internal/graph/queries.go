package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
)

// Trips returns all trips, most recent start date first.
func (g *Graph) Trips() []domain.Trip {
	trips := All[domain.Trip](g)
	sort.Slice(trips, func(i, j int) bool {
		if !trips[i].StartDate.Equal(trips[j].StartDate) {
			return trips[i].StartDate.After(trips[j].StartDate)
		}
		return trips[i].Name < trips[j].Name
	})
	return trips
}

// Days returns the days of a trip in ascending date order.
func (g *Graph) Days(tripID uuid.UUID) []domain.Day {
	days := Children[domain.Day](g, domain.Ref{Kind: domain.KindTrip, ID: tripID})
	sort.Slice(days, func(i, j int) bool {
		if !days[i].Date.Equal(days[j].Date) {
			return days[i].Date.Before(days[j].Date)
		}
		return days[i].DayNumber < days[j].DayNumber
	})
	return days
}

// Stops returns the stops of a day in sort order.
func (g *Graph) Stops(dayID uuid.UUID) []domain.Stop {
	stops := Children[domain.Stop](g, domain.Ref{Kind: domain.KindDay, ID: dayID})
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].SortOrder < stops[j].SortOrder })
	return stops
}

// Comments returns the comments on a stop, oldest first.
func (g *Graph) Comments(stopID uuid.UUID) []domain.Comment {
	cs := Children[domain.Comment](g, domain.Ref{Kind: domain.KindStop, ID: stopID})
	sort.Slice(cs, func(i, j int) bool { return cs[i].CreatedAt.Before(cs[j].CreatedAt) })
	return cs
}

// Links returns the links on a stop in sort order.
func (g *Graph) Links(stopID uuid.UUID) []domain.Link {
	ls := Children[domain.Link](g, domain.Ref{Kind: domain.KindStop, ID: stopID})
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].SortOrder < ls[j].SortOrder })
	return ls
}

// Todos returns the todos on a stop in sort order.
func (g *Graph) Todos(stopID uuid.UUID) []domain.Todo {
	ts := Children[domain.Todo](g, domain.Ref{Kind: domain.KindStop, ID: stopID})
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].SortOrder < ts[j].SortOrder })
	return ts
}

// Bookings returns the bookings of a trip in sort order.
func (g *Graph) Bookings(tripID uuid.UUID) []domain.Booking {
	bs := Children[domain.Booking](g, domain.Ref{Kind: domain.KindTrip, ID: tripID})
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].SortOrder < bs[j].SortOrder })
	return bs
}

// Expenses returns the expenses of a trip in sort order.
func (g *Graph) Expenses(tripID uuid.UUID) []domain.Expense {
	es := Children[domain.Expense](g, domain.Ref{Kind: domain.KindTrip, ID: tripID})
	sort.SliceStable(es, func(i, j int) bool { return es[i].SortOrder < es[j].SortOrder })
	return es
}

// Lists returns the lists of a trip in sort order.
func (g *Graph) Lists(tripID uuid.UUID) []domain.TripList {
	ls := Children[domain.TripList](g, domain.Ref{Kind: domain.KindTrip, ID: tripID})
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].SortOrder < ls[j].SortOrder })
	return ls
}

// ListItems returns the items of a list in sort order.
func (g *Graph) ListItems(listID uuid.UUID) []domain.TripListItem {
	is := Children[domain.TripListItem](g, domain.Ref{Kind: domain.KindList, ID: listID})
	sort.SliceStable(is, func(i, j int) bool { return is[i].SortOrder < is[j].SortOrder })
	return is
}

// Wishlist returns all wishlist items, newest first.
func (g *Graph) Wishlist() []domain.WishlistItem {
	ws := All[domain.WishlistItem](g)
	sort.Slice(ws, func(i, j int) bool { return ws[i].CreatedAt.After(ws[j].CreatedAt) })
	return ws
}
