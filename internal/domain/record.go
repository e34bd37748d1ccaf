package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind tags every record type stored in the graph.
type Kind string

const (
	KindTrip     Kind = "trip"
	KindDay      Kind = "day"
	KindStop     Kind = "stop"
	KindComment  Kind = "comment"
	KindLink     Kind = "link"
	KindTodo     Kind = "todo"
	KindBooking  Kind = "booking"
	KindExpense  Kind = "expense"
	KindList     Kind = "list"
	KindListItem Kind = "list_item"
	KindWishlist Kind = "wishlist"
)

// Ref identifies a record by kind and ID. It is the only way records refer
// to each other: relationships are lookups, never live pointers.
type Ref struct {
	Kind Kind      `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// Record is implemented by every entity type.
type Record interface {
	Ref() Ref
	// Parent returns the owning record, or false for roots (Trip, WishlistItem).
	Parent() (Ref, bool)
}

// ParentKind is the closed ownership table: the kind that owns records of
// kind k, or false for roots.
func ParentKind(k Kind) (Kind, bool) {
	switch k {
	case KindTrip, KindWishlist:
		return "", false
	case KindDay, KindBooking, KindExpense, KindList:
		return KindTrip, true
	case KindStop:
		return KindDay, true
	case KindComment, KindLink, KindTodo:
		return KindStop, true
	case KindListItem:
		return KindList, true
	}
	return "", false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTrip, KindDay, KindStop, KindComment, KindLink, KindTodo,
		KindBooking, KindExpense, KindList, KindListItem, KindWishlist:
		return true
	}
	return false
}

// DecodeRecord rebuilds a typed record of the given kind from its JSON form.
func DecodeRecord(k Kind, data []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch k {
	case KindTrip:
		rec, err = decodeAs[Trip](data)
	case KindDay:
		rec, err = decodeAs[Day](data)
	case KindStop:
		rec, err = decodeAs[Stop](data)
	case KindComment:
		rec, err = decodeAs[Comment](data)
	case KindLink:
		rec, err = decodeAs[Link](data)
	case KindTodo:
		rec, err = decodeAs[Todo](data)
	case KindBooking:
		rec, err = decodeAs[Booking](data)
	case KindExpense:
		rec, err = decodeAs[Expense](data)
	case KindList:
		rec, err = decodeAs[TripList](data)
	case KindListItem:
		rec, err = decodeAs[TripListItem](data)
	case KindWishlist:
		rec, err = decodeAs[WishlistItem](data)
	default:
		return nil, fmt.Errorf("domain.DecodeRecord: unknown kind %q", k)
	}
	if err != nil {
		return nil, fmt.Errorf("domain.DecodeRecord: %s: %w", k, err)
	}
	return rec, nil
}

func decodeAs[T Record](data []byte) (Record, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Fields is a set of JSON-encoded record properties keyed by JSON name.
type Fields map[string]json.RawMessage

// DiffFields returns the properties whose JSON encoding differs between old
// and updated. Both must be the same kind.
func DiffFields(old, updated Record) (Fields, error) {
	before, err := toFields(old)
	if err != nil {
		return nil, fmt.Errorf("domain.DiffFields: %w", err)
	}
	after, err := toFields(updated)
	if err != nil {
		return nil, fmt.Errorf("domain.DiffFields: %w", err)
	}
	diff := Fields{}
	for k, v := range after {
		if prev, ok := before[k]; !ok || !bytes.Equal(prev, v) {
			diff[k] = v
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			diff[k] = json.RawMessage("null")
		}
	}
	return diff, nil
}

// ApplyFields overwrites the given properties of rec and returns the result.
// Properties not named in fields keep their current value.
func ApplyFields(rec Record, fields Fields) (Record, error) {
	current, err := toFields(rec)
	if err != nil {
		return nil, fmt.Errorf("domain.ApplyFields: %w", err)
	}
	for k, v := range fields {
		current[k] = v
	}
	data, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("domain.ApplyFields: %w", err)
	}
	merged, err := DecodeRecord(rec.Ref().Kind, data)
	if err != nil {
		return nil, fmt.Errorf("domain.ApplyFields: %w", err)
	}
	return merged, nil
}

// EncodeRecord returns the JSON form of rec.
func EncodeRecord(rec Record) (json.RawMessage, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("domain.EncodeRecord: %w", err)
	}
	return data, nil
}

func toFields(rec Record) (Fields, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	f := Fields{}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}
