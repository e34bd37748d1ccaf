package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/geo"
	"github.com/pkordes/tripwit/internal/itinerary"
)

// maxPlaces caps how many search hits are kept from one answer.
const maxPlaces = 5

// Client adapts a Generator to the itinerary and geocoding collaborators.
type Client struct {
	gen Generator
	log *slog.Logger
}

var (
	_ itinerary.Suggester = (*Client)(nil)
	_ geo.Geocoder        = (*Client)(nil)
)

// NewClient builds a Client over gen.
func NewClient(gen Generator, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{gen: gen, log: log}
}

const itineraryPrompt = `You convert travel notes into a day-by-day itinerary.
The trip has %d days. Return only JSON of this shape:
{"days":[{"day_number":1,"stops":[{"name":"...","note":"...","category":"...","duration_minutes":60}]}]}
category is one of accommodation, restaurant, attraction, transport, activity, other.
Use the notes' own place names. Do not invent places.

Notes:
%s`

// SuggestItinerary asks the model to split text into days of stops. Day
// numbers are returned as the model gave them; the caller clamps.
func (c *Client) SuggestItinerary(ctx context.Context, text string, totalDays int) ([]itinerary.ParsedDay, error) {
	var out struct {
		Days []itinerary.ParsedDay `json:"days"`
	}
	if err := c.ask(ctx, fmt.Sprintf(itineraryPrompt, totalDays, text), &out); err != nil {
		return nil, fmt.Errorf("assist.Client.SuggestItinerary: %w", err)
	}
	for i := range out.Days {
		stops := out.Days[i].Stops[:0]
		for _, s := range out.Days[i].Stops {
			s.Name = strings.TrimSpace(s.Name)
			if s.Name == "" {
				continue
			}
			stops = append(stops, s)
		}
		out.Days[i].Stops = stops
	}
	c.log.DebugContext(ctx, "ai itinerary", "days", len(out.Days))
	return out.Days, nil
}

const searchPrompt = `Find up to %d real places matching %q%s.
Return only JSON of this shape, best match first:
{"places":[{"name":"...","address":"...","latitude":0.0,"longitude":0.0}]}
Return {"places":[]} when unsure.`

type placeJSON struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Search asks the model for places matching query. Answers with
// out-of-range or 0,0 coordinates are discarded.
func (c *Client) Search(ctx context.Context, query string, bias *geo.Region) ([]geo.Place, error) {
	near := ""
	if bias != nil {
		near = fmt.Sprintf(" within %.0f km of %.4f,%.4f", max(bias.RadiusKm, 1), bias.Center.Latitude, bias.Center.Longitude)
	}
	var out struct {
		Places []placeJSON `json:"places"`
	}
	if err := c.ask(ctx, fmt.Sprintf(searchPrompt, maxPlaces, query, near), &out); err != nil {
		return nil, fmt.Errorf("assist.Client.Search: %w", err)
	}
	places := make([]geo.Place, 0, len(out.Places))
	for _, p := range out.Places {
		at := domain.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
		if !at.IsSet() || p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
			continue
		}
		places = append(places, geo.Place{Name: p.Name, Address: p.Address, Coordinate: at})
		if len(places) == maxPlaces {
			break
		}
	}
	return places, nil
}

const reversePrompt = `What is the street address at latitude %.6f, longitude %.6f?
Return only JSON of this shape: {"address":"..."}`

// Reverse asks the model for the address at a coordinate.
func (c *Client) Reverse(ctx context.Context, at domain.Coordinate) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := c.ask(ctx, fmt.Sprintf(reversePrompt, at.Latitude, at.Longitude), &out); err != nil {
		return "", fmt.Errorf("assist.Client.Reverse: %w", err)
	}
	addr := strings.TrimSpace(out.Address)
	if addr == "" {
		return "", fmt.Errorf("assist.Client.Reverse: %w", geo.ErrNoMatch)
	}
	return addr, nil
}

// ask sends prompt and decodes the JSON answer into v.
func (c *Client) ask(ctx context.Context, prompt string, v any) error {
	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripFences(text)), v); err != nil {
		return fmt.Errorf("decode model answer: %w", err)
	}
	return nil
}

// stripFences removes a Markdown code fence the model sometimes wraps JSON
// in despite being asked not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
