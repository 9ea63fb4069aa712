package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// SnapshotFunc assembles the payload pushed to live dashboard clients.
// It is called once per tick, not per client, so an expensive valuation
// is computed a single time however many dashboards are open.
type SnapshotFunc func() (interface{}, error)

// LiveFeed pushes periodic portfolio snapshots to WebSocket clients.
// It is a timer-driven broadcast of already-computed valuations, not a
// per-tick risk recomputation stream.
type LiveFeed struct {
	snapshot SnapshotFunc
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[chan interface{}]struct{}
	stop    chan struct{}
	started bool
}

// NewLiveFeed creates a new live feed broadcaster
func NewLiveFeed(snapshot SnapshotFunc, interval time.Duration, log zerolog.Logger) *LiveFeed {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &LiveFeed{
		snapshot: snapshot,
		interval: interval,
		log:      log.With().Str("component", "live_feed").Logger(),
		clients:  make(map[chan interface{}]struct{}),
		stop:     make(chan struct{}),
	}
}

// Start launches the broadcast loop
func (f *LiveFeed) Start() {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return
	}
	f.started = true
	f.mu.Unlock()

	go f.broadcastLoop()
}

// Stop terminates the broadcast loop and disconnects all clients
func (f *LiveFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return
	}
	f.started = false
	close(f.stop)

	for ch := range f.clients {
		close(ch)
	}
	f.clients = make(map[chan interface{}]struct{})
}

// ServeHTTP upgrades the request to a WebSocket and streams snapshots
// until the client disconnects. A fresh snapshot is sent immediately on
// connect so the dashboard never starts blank.
func (f *LiveFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// CORS policy is enforced by the router middleware already.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		f.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := f.subscribe()
	defer f.unsubscribe(ch)

	f.log.Debug().Str("remote", r.RemoteAddr).Msg("Live feed client connected")

	if payload, err := f.snapshot(); err == nil {
		if err := f.write(r.Context(), conn, payload); err != nil {
			return
		}
	} else {
		f.log.Warn().Err(err).Msg("Failed to build initial live snapshot")
	}

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			if err := f.write(r.Context(), conn, payload); err != nil {
				f.log.Debug().Err(err).Msg("Live feed client write failed, disconnecting")
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (f *LiveFeed) write(ctx context.Context, conn *websocket.Conn, payload interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, payload)
}

func (f *LiveFeed) subscribe() chan interface{} {
	ch := make(chan interface{}, 1)
	f.mu.Lock()
	f.clients[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *LiveFeed) unsubscribe(ch chan interface{}) {
	f.mu.Lock()
	if _, ok := f.clients[ch]; ok {
		delete(f.clients, ch)
		close(ch)
	}
	f.mu.Unlock()
}

func (f *LiveFeed) broadcastLoop() {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.mu.Lock()
			n := len(f.clients)
			f.mu.Unlock()
			if n == 0 {
				continue
			}

			payload, err := f.snapshot()
			if err != nil {
				f.log.Warn().Err(err).Msg("Failed to build live snapshot")
				continue
			}

			f.mu.Lock()
			for ch := range f.clients {
				// Drop the stale payload if the client is slow; the next
				// tick supersedes it anyway.
				select {
				case ch <- payload:
				default:
				}
			}
			f.mu.Unlock()
		case <-f.stop:
			return
		}
	}
}
