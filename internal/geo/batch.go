package geo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pkordes/tripwit/internal/domain"
)

// DefaultInterval is the minimum spacing between geocoder requests.
const DefaultInterval = 600 * time.Millisecond

// Query asks for the location of one stop.
type Query struct {
	StopID uuid.UUID
	Text   string
	Bias   *Region
}

// Resolution is the outcome for one Query. Coordinate is the 0,0 sentinel
// unless Found.
type Resolution struct {
	StopID     uuid.UUID
	Coordinate domain.Coordinate
	Found      bool
}

// BatchResolver resolves queries one at a time, never faster than one
// request per interval.
type BatchResolver struct {
	geo     Geocoder
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewBatchResolver builds a resolver over g. interval <= 0 selects
// DefaultInterval.
func NewBatchResolver(g Geocoder, interval time.Duration, log *slog.Logger) *BatchResolver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &BatchResolver{geo: g, limiter: rate.NewLimiter(rate.Every(interval), 1), log: log}
}

// Resolve looks up every query in order. A failed or empty lookup leaves
// that stop unresolved and the batch continues. When ctx is cancelled the
// resolutions gathered so far are returned with the context error.
func (r *BatchResolver) Resolve(ctx context.Context, queries []Query) ([]Resolution, error) {
	out := make([]Resolution, 0, len(queries))
	for _, q := range queries {
		if err := r.limiter.Wait(ctx); err != nil {
			return out, fmt.Errorf("geo.BatchResolver.Resolve: %w", err)
		}
		res := Resolution{StopID: q.StopID}
		places, err := r.geo.Search(ctx, q.Text, q.Bias)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return out, fmt.Errorf("geo.BatchResolver.Resolve: %w", ctx.Err())
			}
			r.log.WarnContext(ctx, "geocode failed", "stop_id", q.StopID, "query", q.Text, "error", err)
		case len(places) == 0 || !places[0].Coordinate.IsSet():
			r.log.DebugContext(ctx, "geocode found nothing", "stop_id", q.StopID, "query", q.Text)
		default:
			res.Coordinate = places[0].Coordinate
			res.Found = true
		}
		out = append(out, res)
	}
	return out, nil
}
