// Package feed pushes team totals to read-only consumers.
//
// A subscriber first receives the current total of every team, then the
// latest total of each team that changes. Updates are coalesced per team, so
// a slow consumer never blocks publishers and never misses the newest value.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/baharkarakas/charity-faceoff/internal/metrics"
	"github.com/baharkarakas/charity-faceoff/internal/models"
)

// Source loads committed totals from the ledger.
type Source interface {
	Totals(ctx context.Context) ([]models.TeamTotal, error)
	Total(ctx context.Context, teamID string) (models.TeamTotal, error)
}

type Hub struct {
	src Source

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	latest map[string]models.TeamTotal
}

func NewHub(src Source) *Hub {
	return &Hub{
		src:    src,
		subs:   make(map[uint64]*Subscription),
		latest: make(map[string]models.TeamTotal),
	}
}

// Subscribe registers a consumer and queues a full snapshot for it. The caller
// must Cancel the subscription when it stops reading.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	snapshot, err := h.src.Totals(ctx)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		hub:     h,
		id:      h.nextID,
		pending: make(map[string]models.TeamTotal, len(snapshot)),
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, t := range snapshot {
		if prev, ok := h.latest[t.TeamID]; ok && prev.DonationTotal > t.DonationTotal {
			t = prev
		}
		h.latest[t.TeamID] = t
		sub.offer(t)
	}
	h.subs[sub.id] = sub
	metrics.FeedSubscribers.Set(float64(len(h.subs)))
	return sub, nil
}

// Publish fans t out to every subscriber. Totals only grow, so a value lower
// than one already seen for the team is stale and dropped.
func (h *Hub) Publish(t models.TeamTotal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.latest[t.TeamID]; ok && prev.DonationTotal > t.DonationTotal {
		return
	}
	h.latest[t.TeamID] = t
	for _, sub := range h.subs {
		sub.offer(t)
	}
}

// Refresh re-reads one team from the source and publishes it. It backs the
// cross-replica change listener.
func (h *Hub) Refresh(ctx context.Context, teamID string) {
	t, err := h.src.Total(ctx, teamID)
	if err != nil {
		slog.WarnContext(ctx, "totals refresh failed", "team_id", teamID, "err", err)
		return
	}
	h.Publish(t)
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
	metrics.FeedSubscribers.Set(float64(len(h.subs)))
}

type Subscription struct {
	hub *Hub
	id  uint64

	mu      sync.Mutex
	pending map[string]models.TeamTotal
	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Ready fires when Drain has something to return.
func (s *Subscription) Ready() <-chan struct{} { return s.ready }

// Done is closed once the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Drain returns and clears the queued totals, ordered by team id.
func (s *Subscription) Drain() []models.TeamTotal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TeamTotal, 0, len(s.pending))
	for _, t := range s.pending {
		out = append(out, t)
	}
	clear(s.pending)
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out
}

// Next blocks until updates are available, the subscription is cancelled or
// ctx ends. ok is false in the latter two cases.
func (s *Subscription) Next(ctx context.Context) ([]models.TeamTotal, bool) {
	for {
		select {
		case <-s.done:
			return nil, false
		default:
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-s.done:
			return nil, false
		case <-s.ready:
			if batch := s.Drain(); len(batch) > 0 {
				return batch, true
			}
		}
	}
}

// Cancel releases the subscription. It is idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s.id)
	})
}

func (s *Subscription) offer(t models.TeamTotal) {
	s.mu.Lock()
	if prev, ok := s.pending[t.TeamID]; !ok || prev.DonationTotal <= t.DonationTotal {
		s.pending[t.TeamID] = t
	}
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
