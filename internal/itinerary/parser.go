package itinerary

import (
	"context"
	"log/slog"
)

// Suggester is a generative model able to turn itinerary text into day
// drafts. Every call is fallible.
type Suggester interface {
	SuggestItinerary(ctx context.Context, text string, totalDays int) ([]ParsedDay, error)
}

// Parser tries the AI suggester first and falls back to the heuristic Parse
// when the suggester is unset, fails, or produces no stops.
type Parser struct {
	ai  Suggester
	log *slog.Logger
}

// NewParser builds a Parser. ai may be nil, in which case only the heuristic
// runs.
func NewParser(ai Suggester, log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{ai: ai, log: log}
}

// Parse returns day drafts for text, never an error. Day numbers from the AI
// path are clamped into [1, totalDays] the same way the heuristic clamps.
func (p *Parser) Parse(ctx context.Context, text string, totalDays int) []ParsedDay {
	if totalDays < 1 {
		totalDays = 1
	}
	if p.ai != nil {
		days, err := p.ai.SuggestItinerary(ctx, text, totalDays)
		switch {
		case err != nil:
			p.log.WarnContext(ctx, "ai itinerary parse failed, using heuristic", "error", err)
		case Empty(days):
			p.log.InfoContext(ctx, "ai itinerary parse returned no stops, using heuristic")
		default:
			return normalize(days, totalDays)
		}
	}
	return Parse(text, totalDays)
}

// normalize clamps day numbers and drops stopless days, merging days that
// land on the same number.
func normalize(days []ParsedDay, totalDays int) []ParsedDay {
	var out []ParsedDay
	for _, d := range days {
		if len(d.Stops) == 0 {
			continue
		}
		stops := make([]ParsedStop, 0, len(d.Stops))
		for _, s := range d.Stops {
			if !s.Category.Valid() {
				s.Category = inferCategory(s.Name + " " + s.Note)
			}
			if s.DurationMinutes <= 0 {
				s.DurationMinutes = inferDuration(s.Note, s.Category)
			}
			stops = append(stops, s)
		}
		out = appendDay(out, clampDay(d.DayNumber, totalDays), stops)
	}
	return out
}
