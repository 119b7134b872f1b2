// Package idempotency replays cached responses for repeated mutating
// requests. Line terminals retry factory event posts aggressively on
// flaky wifi, so every POST carrying an X-Idempotency-Key is answered
// at most once; replays get the original response back.
package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/novaboard/lineplan/planner/observability"
	"github.com/novaboard/lineplan/planner/store"
)

const (
	// HeaderKey is the request header carrying the client-chosen key.
	HeaderKey = "X-Idempotency-Key"
	// ttl bounds how long a cached response is replayable.
	ttl = time.Hour
)

// Replayer caches responses keyed by X-Idempotency-Key in the shared
// store, so replay survives restarts when Redis or Postgres backs it.
type Replayer struct {
	store store.Store
}

func NewReplayer(s store.Store) *Replayer {
	return &Replayer{store: s}
}

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
	CType  string `json:"content_type,omitempty"`
}

// recorder buffers the response so it can be cached after the handler runs.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// Wrap adds replay semantics to a handler. Requests without the header
// pass straight through. On a replayed key the cached status and body
// are returned and the handler never runs.
func (rp *Replayer) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderKey)
		if key == "" {
			next(w, r)
			return
		}

		if raw, ok, err := rp.store.GetReplay(r.Context(), key); err != nil {
			log.Printf("[IDEMPOTENCY] lookup %q failed: %v", key, err)
		} else if ok {
			var cached cachedResponse
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				observability.FactoryEvents.WithLabelValues("replayed").Inc()
				if cached.CType != "" {
					w.Header().Set("Content-Type", cached.CType)
				}
				w.Header().Set("X-Idempotent-Replay", "true")
				w.WriteHeader(cached.Status)
				w.Write(cached.Body)
				return
			}
		}

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		// 5xx responses are not cached so the client can retry for real.
		if rec.status >= 500 {
			return
		}
		payload, err := json.Marshal(cachedResponse{
			Status: rec.status,
			Body:   rec.body.Bytes(),
			CType:  rec.Header().Get("Content-Type"),
		})
		if err != nil {
			return
		}
		// Losing the NX race just means a concurrent twin cached first.
		if _, err := rp.store.SetReplayNX(context.WithoutCancel(r.Context()), key, string(payload), ttl); err != nil {
			log.Printf("[IDEMPOTENCY] cache %q failed: %v", key, err)
		}
	}
}
