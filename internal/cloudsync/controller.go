// Package cloudsync keeps the live graph in step with the replicated store.
//
// The store is split into a private partition, holding the current user's
// own records, and a shared partition, holding trips exposed to other users
// through share grants. The Controller derives per-record permissions from
// those partitions, merges remote history into the graph, and runs the share
// lifecycle from invitation to import.
package cloudsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/graph"
)

// DefaultRetention is how long history entries are kept before compaction.
const DefaultRetention = 7 * 24 * time.Hour

// DefaultPollInterval is how often Run reconciles without a notification.
const DefaultPollInterval = 30 * time.Second

// History is the store's change log.
type History interface {
	// FetchSince returns the transactions with a token greater than after,
	// in token order.
	FetchSince(ctx context.Context, after int64) ([]domain.Transaction, error)
	// PurgeBefore deletes transactions created before cutoff and returns
	// how many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cursors persists how far each device has read the history.
type Cursors interface {
	Load(ctx context.Context, device string) (int64, error)
	Save(ctx context.Context, device string, token int64) error
}

// Shares manages share grants and invitations.
type Shares interface {
	CreateShare(ctx context.Context, s domain.Share) error
	CreateInvitation(ctx context.Context, inv domain.Invitation) error
	// AcceptInvitation adds userID to the grant named by the invitation and
	// returns the updated share.
	AcceptInvitation(ctx context.Context, token uuid.UUID, userID string) (domain.Share, error)
	// SharesFor lists the grants userID owns or participates in.
	SharesFor(ctx context.Context, userID string) ([]domain.Share, error)
}

// Snapshots reads records straight from the store, bypassing history.
type Snapshots interface {
	LoadStore(ctx context.Context, store string) ([]domain.Record, error)
	LoadTrip(ctx context.Context, store string, tripID uuid.UUID) ([]domain.Record, error)
}

// Relocator moves a trip subtree to another store and saves the move.
// Implemented by service.Manager.
type Relocator interface {
	RelocateTrip(ctx context.Context, tripID uuid.UUID, store string) error
}

// Publisher receives remote change events. Implemented by events.Bus.
type Publisher interface {
	Publish(ev domain.ChangeEvent)
}

// Stores bundles the durable collaborators of a Controller.
type Stores struct {
	History   History
	Cursors   Cursors
	Shares    Shares
	Snapshots Snapshots
}

// Config identifies the device session and tunes background work.
// Zero durations select DefaultRetention and DefaultPollInterval.
type Config struct {
	// DeviceID is the author tag on this device's transactions and the key
	// of its history cursor.
	DeviceID string
	UserID   string
	// PrivateStore is the base name of the private partitions; the
	// Controller reads the one belonging to UserID.
	PrivateStore string
	SharedStore  string
	Retention    time.Duration
	PollInterval time.Duration

	Events Publisher
	Logger *slog.Logger
	Now    func() time.Time
}

// Controller is safe for concurrent use.
type Controller struct {
	graph     *graph.Graph
	history   History
	cursors   Cursors
	shares    Shares
	snapshots Snapshots
	relocator Relocator

	device       string
	user         string
	privateStore string
	sharedStore  string
	retention    time.Duration
	pollInterval time.Duration
	events       Publisher
	log          *slog.Logger
	now          func() time.Time

	reconcileMu sync.Mutex
	accepting   atomic.Bool

	mu          sync.RWMutex
	grants      map[uuid.UUID]domain.Share
	invitations map[uuid.UUID]domain.Invitation
	accepted    map[uuid.UUID]bool
}

// NewController constructs a Controller over g.
func NewController(g *graph.Graph, stores Stores, cfg Config) *Controller {
	c := &Controller{
		graph:        g,
		history:      stores.History,
		cursors:      stores.Cursors,
		shares:       stores.Shares,
		snapshots:    stores.Snapshots,
		device:       cfg.DeviceID,
		user:         cfg.UserID,
		privateStore: domain.PrivateStore(cfg.PrivateStore, cfg.UserID),
		sharedStore:  cfg.SharedStore,
		retention:    cfg.Retention,
		pollInterval: cfg.PollInterval,
		events:       cfg.Events,
		log:          cfg.Logger,
		now:          cfg.Now,
		grants:       make(map[uuid.UUID]domain.Share),
		invitations:  make(map[uuid.UUID]domain.Invitation),
		accepted:     make(map[uuid.UUID]bool),
	}
	if c.retention <= 0 {
		c.retention = DefaultRetention
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.events == nil {
		c.events = discard{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

type discard struct{}

func (discard) Publish(domain.ChangeEvent) {}

// SetRelocator wires the component that performs trip relocation. The
// Domain Manager takes the Controller as its Guard, so the two are
// connected after both exist.
func (c *Controller) SetRelocator(r Relocator) {
	c.relocator = r
}

// Load seeds the graph with the private store and every shared trip this
// user owns or has joined.
func (c *Controller) Load(ctx context.Context) error {
	recs, err := c.snapshots.LoadStore(ctx, c.privateStore)
	if err != nil {
		return fmt.Errorf("cloudsync.Controller.Load: %w", err)
	}
	c.graph.Seed(c.privateStore, recs...)

	if err := c.refreshGrants(ctx); err != nil {
		return fmt.Errorf("cloudsync.Controller.Load: %w", err)
	}
	for _, tripID := range c.joinedTrips() {
		recs, err := c.snapshots.LoadTrip(ctx, c.sharedStore, tripID)
		if err != nil {
			return fmt.Errorf("cloudsync.Controller.Load: trip %s: %w", tripID, err)
		}
		c.graph.Seed(c.sharedStore, recs...)
	}
	c.log.InfoContext(ctx, "graph loaded", "records", c.graph.Len())
	return nil
}

// refreshGrants replaces the cached share grants with the store's view.
func (c *Controller) refreshGrants(ctx context.Context) error {
	shares, err := c.shares.SharesFor(ctx, c.user)
	if err != nil {
		return err
	}
	grants := make(map[uuid.UUID]domain.Share, len(shares))
	for _, s := range shares {
		grants[s.TripID] = s
	}
	c.mu.Lock()
	c.grants = grants
	c.mu.Unlock()
	return nil
}

// joinedTrips lists trips whose grant names this user as owner or as an
// accepted participant.
func (c *Controller) joinedTrips() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []uuid.UUID
	for id, s := range c.grants {
		if p, ok := s.ParticipantFor(c.user); ok && p.Accepted {
			out = append(out, id)
		}
	}
	return out
}

func (c *Controller) grant(tripID uuid.UUID) (domain.Share, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.grants[tripID]
	return s, ok
}
