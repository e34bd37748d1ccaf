package handler

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/transfer"
)

// ExportRow is the JSON form of domain.ExportRow. Fields that are empty
// for a day without stops are omitted.
type ExportRow struct {
	TripID        uuid.UUID           `json:"trip_id"`
	TripName      string              `json:"trip_name"`
	DayNumber     int                 `json:"day_number"`
	Date          *openapi_types.Date `json:"date,omitempty"`
	DayNotes      *string             `json:"day_notes,omitempty"`
	StopName      *string             `json:"stop_name,omitempty"`
	StopCategory  *string             `json:"stop_category,omitempty"`
	ArrivalTime   *time.Time          `json:"arrival_time,omitempty"`
	DepartureTime *time.Time          `json:"departure_time,omitempty"`
	StopNotes     *string             `json:"stop_notes,omitempty"`
}

// GetExport handles GET /trips/{id}/export.
// It returns one row per stop, and one row for each day without stops.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rows, err := s.transfer.Export(id)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		body := buildCSV(rows)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}
	writeJSON(w, http.StatusOK, buildJSONRows(rows))
}

// GetTransfer handles GET /trips/{id}/transfer, serving the trip as a
// .tripwit snapshot download.
func (s *Server) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	snap, err := s.transfer.ExportSnapshot(id)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}

	var buf bytes.Buffer
	if err := transfer.Encode(&buf, snap); err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snapshotFilename(snap.Name)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// PostTransfer handles POST /transfer: the body is a .tripwit snapshot,
// imported as a new trip with fresh IDs.
func (s *Server) PostTransfer(w http.ResponseWriter, r *http.Request) {
	snap, err := transfer.Decode(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, codeValidation, "request body too large")
		case errors.Is(err, transfer.ErrUnsupportedVersion):
			writeError(w, http.StatusUnprocessableEntity, codeValidation, "snapshot was written by a newer version")
		default:
			writeError(w, http.StatusUnprocessableEntity, codeValidation, "malformed snapshot: "+err.Error())
		}
		return
	}

	trip, err := s.transfer.ImportSnapshot(r.Context(), snap)
	if err != nil {
		writeServiceError(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(trip))
}

// buildJSONRows converts domain rows to their JSON form.
func buildJSONRows(rows []domain.ExportRow) []ExportRow {
	out := make([]ExportRow, 0, len(rows))
	for _, r := range rows {
		tripID, _ := uuid.Parse(r.TripID)
		row := ExportRow{
			TripID:        tripID,
			TripName:      r.TripName,
			DayNumber:     r.DayNumber,
			DayNotes:      nilIfEmpty(r.DayNotes),
			StopName:      nilIfEmpty(r.StopName),
			StopCategory:  nilIfEmpty(string(r.StopCategory)),
			ArrivalTime:   r.ArrivalTime,
			DepartureTime: r.DepartureTime,
			StopNotes:     nilIfEmpty(r.StopNotes),
		}
		if d, err := time.Parse(time.DateOnly, r.Date); err == nil {
			row.Date = &openapi_types.Date{Time: d}
		}
		out = append(out, row)
	}
	return out
}

// buildCSV encodes domain rows as CSV with a header row.
func buildCSV(rows []domain.ExportRow) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	// bytes.Buffer writes never fail.
	_ = w.Write(domain.ExportColumns)
	for _, r := range rows {
		_ = w.Write(r.CSVRecord())
	}
	w.Flush()
	return buf.Bytes()
}

// snapshotFilename turns a trip name into a safe download name.
func snapshotFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "trip"
	}
	return clean + transfer.FileExtension
}
