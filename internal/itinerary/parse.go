// Package itinerary turns free-form itinerary text into day/stop drafts.
//
// Parse is a deterministic heuristic that never fails: unusable input
// yields an empty result, and callers use Empty to detect that and ask the
// user to reformat. Parser optionally puts a generative model in front of
// the heuristic and falls back to it whenever the model is unavailable or
// returns nothing.
package itinerary

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkordes/tripwit/internal/domain"
)

// ParsedStop is one stop extracted from a line of text.
type ParsedStop struct {
	Name            string          `json:"name"`
	Note            string          `json:"note"`
	Category        domain.Category `json:"category"`
	DurationMinutes int             `json:"duration_minutes"`
}

// ParsedDay groups the stops found under one day header.
type ParsedDay struct {
	DayNumber int          `json:"day_number"`
	Stops     []ParsedStop `json:"stops"`
}

// Empty reports whether days carries no stops at all.
func Empty(days []ParsedDay) bool {
	for _, d := range days {
		if len(d.Stops) > 0 {
			return false
		}
	}
	return true
}

const noteSeparator = " · "

var (
	dayHeader = regexp.MustCompile(`(?i)^[#*_>\s]*day\s*(\d+)\b`)

	listMarker = regexp.MustCompile(`^(?:[-*•·+>]\s*|\d+[.)]\s+|#+\s*)+`)

	timeWordPrefix = regexp.MustCompile(`(?i)^(early morning|late morning|morning|midday|noon|afternoon|late afternoon|evening|night|late night|breakfast|brunch|lunch|dinner)\s*[:\-–—]\s*`)
	clockPrefix    = regexp.MustCompile(`(?i)^(\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm))\s*(?:[:\-–—]\s*)?`)

	parenthetical = regexp.MustCompile(`\(([^)]*)\)`)
	spaces        = regexp.MustCompile(`\s{2,}`)

	hoursPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)
	minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:minutes?|mins?)\b`)
)

// nameSeparators split "Name - description" style lines.
var nameSeparators = []string{" - ", " – ", " — ", ": "}

// sectionHeaders are lines that label a part of a day rather than a stop.
var sectionHeaders = map[string]bool{
	"morning": true, "afternoon": true, "evening": true, "night": true,
	"early morning": true, "late morning": true, "late afternoon": true,
	"midday": true, "tips": true, "tip": true, "budget": true, "notes": true,
	"note": true, "overview": true, "summary": true, "highlights": true,
	"itinerary": true, "schedule": true, "getting around": true,
	"where to stay": true, "where to eat": true, "transportation": true,
	"food": true, "meals": true, "optional": true,
}

// Parse converts text into day drafts for a trip of totalDays days.
// Stops before the first day header belong to day 1. Every produced day
// number lies in [1, totalDays]; days that clamp to the same number are
// merged in order.
func Parse(text string, totalDays int) []ParsedDay {
	if totalDays < 1 {
		totalDays = 1
	}
	var (
		days    []ParsedDay
		current = 1
		stops   []ParsedStop
	)
	flush := func() {
		if len(stops) == 0 {
			return
		}
		days = appendDay(days, clampDay(current, totalDays), stops)
		stops = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := dayHeader.FindStringSubmatch(line); m != nil {
			flush()
			n, err := strconv.Atoi(m[1])
			if err != nil {
				n = totalDays
			}
			current = min(n, totalDays)
			continue
		}
		if stop, ok := parseStopLine(line); ok {
			stops = append(stops, stop)
		}
	}
	flush()
	return days
}

func appendDay(days []ParsedDay, number int, stops []ParsedStop) []ParsedDay {
	for i := range days {
		if days[i].DayNumber == number {
			days[i].Stops = append(days[i].Stops, stops...)
			return days
		}
	}
	return append(days, ParsedDay{DayNumber: number, Stops: stops})
}

func clampDay(n, total int) int {
	return max(1, min(n, total))
}

// parseStopLine extracts a stop from one non-header line.
func parseStopLine(line string) (ParsedStop, bool) {
	text := listMarker.ReplaceAllString(line, "")
	text = strings.NewReplacer("**", "", "__", "").Replace(text)
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 3 {
		return ParsedStop{}, false
	}
	if sectionHeaders[strings.ToLower(strings.TrimRight(text, ":. "))] {
		return ParsedStop{}, false
	}

	var note string
	if m := timeWordPrefix.FindStringSubmatch(text); m != nil {
		note = m[1]
		text = text[len(m[0]):]
	} else if m := clockPrefix.FindStringSubmatch(text); m != nil {
		note = strings.TrimSpace(m[1])
		text = text[len(m[0]):]
	}

	for _, m := range parenthetical.FindAllStringSubmatch(text, -1) {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			note = joinNote(note, inner)
		}
	}
	text = parenthetical.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaces.ReplaceAllString(text, " "))

	name := text
	if i, sep := firstSeparator(text); i >= 0 {
		before := strings.TrimSpace(text[:i])
		if n := utf8.RuneCountInString(before); n >= 3 && n <= 80 {
			name = before
			note = joinNote(note, strings.TrimSpace(text[i+len(sep):]))
		}
	}
	name = strings.Trim(name, " .:;,-–—")
	if utf8.RuneCountInString(name) < 2 {
		return ParsedStop{}, false
	}

	category := inferCategory(name + " " + note)
	return ParsedStop{
		Name:            name,
		Note:            note,
		Category:        category,
		DurationMinutes: inferDuration(note, category),
	}, true
}

func firstSeparator(text string) (int, string) {
	best, bestSep := -1, ""
	for _, sep := range nameSeparators {
		if i := strings.Index(text, sep); i >= 0 && (best < 0 || i < best) {
			best, bestSep = i, sep
		}
	}
	return best, bestSep
}

func joinNote(note, extra string) string {
	if extra == "" {
		return note
	}
	if note == "" {
		return extra
	}
	return note + noteSeparator + extra
}

// categoryKeywords is checked in this order; the first set with a match wins.
var categoryKeywords = []struct {
	category domain.Category
	words    []string
}{
	{domain.CategoryRestaurant, []string{
		"restaurant", "restaurants", "café", "cafe", "cafes", "cafés", "coffee", "bistro", "brasserie",
		"bar", "pub", "sushi", "ramen", "pizza", "pizzeria", "trattoria", "osteria", "taverna",
		"bakery", "patisserie", "pâtisserie", "boulangerie", "breakfast", "brunch", "lunch", "dinner",
		"food", "eat", "dining", "tapas", "noodles", "izakaya", "steakhouse", "diner", "gelato",
		"ice cream", "wine bar", "tea house", "teahouse", "dim sum", "bbq", "grill", "street food",
		"food market", "crêperie", "creperie", "deli",
	}},
	{domain.CategoryAttraction, []string{
		"museum", "museums", "musée", "gallery", "cathedral", "church", "temple", "shrine",
		"palace", "castle", "tower", "monument", "memorial", "basilica", "mosque", "ruins",
		"landmark", "fort", "fortress", "bridge", "square", "plaza", "park", "garden", "gardens",
		"viewpoint", "lookout", "statue", "abbey", "opera", "old town", "zoo", "aquarium",
		"exhibition", "louvre", "colosseum", "arc de triomphe", "eiffel",
	}},
	{domain.CategoryActivity, []string{
		"tour", "tours", "hike", "hiking", "walk", "walking", "cruise", "kayak", "kayaking",
		"snorkel", "snorkeling", "snorkelling", "diving", "surf", "surfing", "class", "workshop",
		"show", "concert", "spa", "massage", "shopping", "bike", "biking", "cycling", "ride",
		"climb", "climbing", "ski", "skiing", "beach", "swim", "swimming", "yoga", "tasting",
		"safari", "excursion", "boat", "market",
	}},
	{domain.CategoryTransport, []string{
		"airport", "flight", "fly", "train", "station", "bus", "metro", "subway", "taxi",
		"uber", "ferry", "transfer", "drive", "car rental", "rental car", "shuttle", "tram",
		"depart", "departure", "arrive", "arrival",
	}},
	{domain.CategoryAccommodation, []string{
		"hotel", "hostel", "airbnb", "check in", "resort", "inn", "lodge", "guesthouse",
		"guest house", "accommodation", "bnb", "motel", "ryokan", "apartment", "stay",
	}},
}

// inferCategory matches whole words (or word sequences) of text against the
// keyword sets, defaulting to attraction.
func inferCategory(text string) domain.Category {
	padded := " " + normalizeWords(text) + " "
	for _, set := range categoryKeywords {
		for _, w := range set.words {
			if strings.Contains(padded, " "+w+" ") {
				return set.category
			}
		}
	}
	return domain.CategoryAttraction
}

// normalizeWords lowercases s and replaces every run of non-letter,
// non-digit characters with a single space.
func normalizeWords(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

var defaultDurations = map[domain.Category]int{
	domain.CategoryRestaurant:    75,
	domain.CategoryAttraction:    90,
	domain.CategoryActivity:      120,
	domain.CategoryTransport:     30,
	domain.CategoryAccommodation: 0,
	domain.CategoryOther:         60,
}

// inferDuration reads an explicit "<N> hr"/"<N> min" duration from the note,
// falling back to the category default.
func inferDuration(note string, category domain.Category) int {
	total, found := 0.0, false
	if m := hoursPattern.FindStringSubmatch(note); m != nil {
		if h, err := strconv.ParseFloat(m[1], 64); err == nil {
			total += h * 60
			found = true
		}
	}
	if m := minutesPattern.FindStringSubmatch(note); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			total += float64(n)
			found = true
		}
	}
	if found && total > 0 {
		return int(total + 0.5)
	}
	return defaultDurations[category]
}
