package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/novaboard/lineplan/planner/gantt"
	"github.com/novaboard/lineplan/planner/idempotency"
	"github.com/novaboard/lineplan/planner/middleware"
	"github.com/novaboard/lineplan/planner/observability"
	"github.com/novaboard/lineplan/planner/scheduling"
	"github.com/novaboard/lineplan/planner/store"
)

const maxFailureUpload = 8 << 20 // photos from line terminals

// API exposes the engine over HTTP: factory event intake, schedule
// reads, the recompute/approve/reject surface and the dashboard.
type API struct {
	store        store.Store
	orchestrator *Orchestrator
	hub          *ScheduleHub
	replayer     *idempotency.Replayer
	eventLimiter *middleware.RateLimiter
	upgrader     websocket.Upgrader
}

func NewAPI(st store.Store, orch *Orchestrator, hub *ScheduleHub) *API {
	return &API{
		store:        st,
		orchestrator: orch,
		hub:          hub,
		replayer:     idempotency.NewReplayer(st),
		// Line terminals report at most a handful of failures per hour;
		// 30/min with burst 10 absorbs retry storms without dropping
		// genuine reports.
		eventLimiter: middleware.NewRateLimiter(30, 10),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes registers every endpoint on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /factory/failure", a.eventLimiter.Wrap(a.replayer.Wrap(a.handleFactoryFailure)))
	mux.HandleFunc("GET /api/schedule", a.handleGetSchedule)
	mux.HandleFunc("GET /api/schedule/{id}/timeline.svg", a.handleTimeline)
	mux.HandleFunc("GET /api/schedule/stream", a.handleStream)
	mux.HandleFunc("POST /api/schedule/recompute", a.replayer.Wrap(a.handleRecompute))
	mux.HandleFunc("POST /api/proposal/approve", a.handleApprove)
	mux.HandleFunc("POST /api/proposal/reject", a.handleReject)
	mux.HandleFunc("POST /api/proposal/revise", a.handleRevise)
	mux.HandleFunc("GET /api/dashboard", a.handleDashboard)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleFactoryFailure ingests a line failure report: multipart form
// with a photo of the failure, an optional po_id and an optional
// description.
func (a *API) handleFactoryFailure(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFailureUpload); err != nil {
		observability.FactoryEvents.WithLabelValues("malformed").Inc()
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	description := r.FormValue("description")
	poID := r.FormValue("po_id")

	file, _, err := r.FormFile("image")
	if err != nil {
		observability.FactoryEvents.WithLabelValues("malformed").Inc()
		writeError(w, http.StatusBadRequest, errors.New("an image of the failure is required"))
		return
	}
	image, err := io.ReadAll(io.LimitReader(file, maxFailureUpload))
	file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read image: %w", err))
		return
	}

	t, err := a.orchestrator.HandleFactoryFailure(r.Context(), poID, description, image)
	if err != nil {
		if errors.Is(err, ErrPOUnresolved) {
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "unresolved",
				"message": "no executing production order matched the report",
			})
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "accepted",
		"po_id":       t.POID,
		"po_code":     t.POCode,
		"sales_order": t.SalesOrderCode,
	})
}

// handleGetSchedule returns the current schedule: the pending proposal
// when one exists, otherwise the latest approved snapshot. A ?status=
// query pins one of the two explicitly.
func (a *API) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch q := r.URL.Query().Get("status"); q {
	case "":
	case string(scheduling.ScheduleProposed), string(scheduling.ScheduleApproved):
		s, err := a.store.LatestByStatus(ctx, scheduling.ScheduleStatus(q))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if s == nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("no %s schedule", q))
			return
		}
		writeJSON(w, http.StatusOK, s)
		return
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("status must be proposed or approved"))
		return
	}

	s, err := a.store.LatestByStatus(ctx, scheduling.ScheduleProposed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s == nil {
		if s, err = a.store.LatestByStatus(ctx, scheduling.ScheduleApproved); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if s == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no schedule yet"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) handleTimeline(w http.ResponseWriter, r *http.Request) {
	var id int64
	if _, err := fmt.Sscanf(r.PathValue("id"), "%d", &id); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad schedule id"))
		return
	}
	s, err := a.store.GetSchedule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("schedule #%d not found", id))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(gantt.SVG(s))
}

func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[STREAM] upgrade failed: %v", err)
		return
	}
	a.hub.Register(conn)

	// Read pump: discard inbound frames, unregister on close.
	go func() {
		defer a.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (a *API) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policy  string `json:"policy"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	policy := scheduling.PolicyEDF
	if req.Policy != "" {
		var err error
		if policy, err = scheduling.ParsePolicy(req.Policy); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	s, err := a.orchestrator.ComputeProposal(r.Context(), policy, nil, req.Comment)
	if err != nil {
		var perr *scheduling.PlanningError
		if errors.As(err, &perr) {
			writeError(w, http.StatusUnprocessableEntity, perr)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (a *API) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduleID int64 `json:"schedule_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s, err := a.orchestrator.Approve(r.Context(), req.ScheduleID)
	if err != nil {
		if errors.Is(err, ErrNoProposal) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) handleReject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduleID int64  `json:"schedule_id"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.orchestrator.Reject(r.Context(), req.ScheduleID, req.Reason); err != nil {
		if errors.Is(err, ErrNoProposal) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (a *API) handleRevise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s, err := a.orchestrator.Revise(r.Context(), req.Feedback)
	if err != nil {
		if errors.Is(err, ErrNoProposal) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// handleDashboard aggregates what the frontend renders on load.
func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	approved, err := a.store.LatestByStatus(ctx, scheduling.ScheduleApproved)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	proposed, err := a.store.LatestByStatus(ctx, scheduling.ScheduleProposed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	tracked, err := a.store.ListTracking(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	type scheduleView struct {
		ID          int64     `json:"id"`
		GeneratedAt time.Time `json:"generated_at"`
		Policy      string    `json:"policy"`
		Orders      int       `json:"orders"`
		Late        []string  `json:"late"`
		Comment     string    `json:"comment,omitempty"`
	}
	view := func(s *scheduling.Schedule) *scheduleView {
		if s == nil {
			return nil
		}
		return &scheduleView{
			ID:          s.ID,
			GeneratedAt: s.GeneratedAt,
			Policy:      string(s.Policy),
			Orders:      len(s.Entries),
			Late:        s.LateIDs,
			Comment:     s.Comment,
		}
	}

	// Deadline-at-risk and priority aggregates over the current schedule.
	current := proposed
	if current == nil {
		current = approved
	}
	byPriority := map[int]int{}
	var atRisk []map[string]any
	if current != nil {
		now := time.Now().UTC()
		horizon := now.Add(48 * time.Hour)
		for _, e := range current.Entries {
			byPriority[e.Order.Priority]++
			if !e.OnTime || e.Deadline.Before(horizon) {
				atRisk = append(atRisk, map[string]any{
					"order":         e.Order.InternalID,
					"customer":      e.Order.Customer.Name,
					"deadline":      e.Deadline,
					"slack_minutes": e.SlackMinutes,
					"on_time":       e.OnTime,
				})
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"approved":       view(approved),
		"proposed":       view(proposed),
		"in_production":  len(tracked),
		"by_priority":    byPriority,
		"at_risk":        atRisk,
		"stream_clients": a.hub.ClientCount(),
		"generated_at":   time.Now().UTC(),
	})
}
