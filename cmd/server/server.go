package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/observability"
	"b3-genetic-lab/internal/orchestrator"
	"b3-genetic-lab/internal/priceseries"
	"b3-genetic-lab/internal/reporting"
	"b3-genetic-lab/internal/storage"
)

// Run states reported by the API.
const (
	stateRunning   = "running"
	stateCompleted = "completed"
	stateFailed    = "failed"
	stateCancelled = "cancelled"
)

// Server exposes optimization runs over HTTP.
type Server struct {
	orch      *orchestrator.Orchestrator
	runStore  storage.RunStore // nil when runs are not persisted
	generator *reporting.Generator
	hub       http.Handler
	metrics   http.Handler
	sem       *semaphore.Weighted
	defaults  domain.OptimizerConfig
	seed      int64
	logger    zerolog.Logger
	now       func() time.Time

	// runCtx is the parent of every run; cancelled on shutdown.
	runCtx context.Context
	wg     sync.WaitGroup

	// State
	mu        sync.Mutex
	runs      map[string]*runState
	started   time.Time
	completed int
	failed    int
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Orchestrator      *orchestrator.Orchestrator
	RunStore          storage.RunStore // optional
	Hub               http.Handler     // optional, served at /ws/progress
	Metrics           http.Handler     // optional, served at /metrics
	Defaults          domain.OptimizerConfig
	Seed              int64
	MaxConcurrentRuns int
	Logger            zerolog.Logger
	Now               func() time.Time
}

// runState tracks one run started by this process.
type runState struct {
	RunID      string            `json:"run_id"`
	Status     string            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	BestScore  float64           `json:"best_score,omitempty"`
	Report     json.RawMessage   `json:"report,omitempty"`
	record     *domain.RunRecord // set when completed
}

// runRequest overrides the configured defaults for one run.
type runRequest struct {
	InitialCapital *float64 `json:"initial_capital"`
	PopulationSize *int     `json:"population_size"`
	NumGenerations *int     `json:"num_generations"`
	MutationRate   *float64 `json:"mutation_rate"`
	NumPots        *int     `json:"num_pots"`
	Workers        *int     `json:"workers"`
	Seed           *int64   `json:"seed"`
	From           string   `json:"from"` // YYYY-MM-DD
	To             string   `json:"to"`
}

// NewServer creates a Server whose runs derive from ctx.
func NewServer(ctx context.Context, opts ServerOptions) *Server {
	s := &Server{
		orch:      opts.Orchestrator,
		runStore:  opts.RunStore,
		generator: reporting.NewGenerator(opts.RunStore),
		hub:       opts.Hub,
		metrics:   opts.Metrics,
		defaults:  opts.Defaults,
		seed:      opts.Seed,
		logger:    opts.Logger.With().Str("component", "server").Logger(),
		now:       opts.Now,
		runCtx:    ctx,
		runs:      make(map[string]*runState),
	}
	limit := opts.MaxConcurrentRuns
	if limit < 1 {
		limit = 1
	}
	s.sem = semaphore.NewWeighted(int64(limit))
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.metrics == nil {
		s.metrics = observability.Handler()
	}
	s.started = s.now()
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", s.metrics)

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)

	if s.hub != nil {
		mux.Handle("/ws/progress", s.hub)
	}
	return mux
}

// Wait blocks until all background runs have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	Started       time.Time `json:"started"`
	ActiveRuns    int       `json:"active_runs"`
	CompletedRuns int       `json:"completed_runs"`
	FailedRuns    int       `json:"failed_runs"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        s.now().Sub(s.started).Round(time.Second).String(),
		Started:       s.started,
		CompletedRuns: s.completed,
		FailedRuns:    s.failed,
	}
	for _, st := range s.runs {
		if st.Status == stateRunning {
			resp.ActiveRuns++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleStartRun validates the request synchronously and evolves in the background.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
			return
		}
	}

	req, err := s.buildRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.sem.TryAcquire(1) {
		writeError(w, http.StatusTooManyRequests, "too many concurrent runs")
		return
	}

	job, err := s.orch.Prepare(r.Context(), req)
	if err != nil {
		s.sem.Release(1)
		writeError(w, statusForError(err), err.Error())
		return
	}

	st := &runState{RunID: job.RunID, Status: stateRunning, StartedAt: job.StartedAt}
	s.mu.Lock()
	if _, exists := s.runs[job.RunID]; exists {
		s.mu.Unlock()
		s.sem.Release(1)
		writeError(w, http.StatusConflict, "run already exists")
		return
	}
	s.runs[job.RunID] = st
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(job)
	s.logger.Info().Str("run_id", job.RunID).Int("cycles", job.Series().NumCycles()).Msg("run accepted")

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": job.RunID,
		"status": stateRunning,
	})
}

func (s *Server) execute(job *orchestrator.Job) {
	defer s.wg.Done()
	defer s.sem.Release(1)

	record, err := s.orch.Execute(s.runCtx, job)

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.runs[job.RunID]
	st.FinishedAt = s.now()
	switch {
	case err == nil:
		st.Status = stateCompleted
		st.BestScore = record.BestScore
		st.record = record
		s.completed++
	case errors.Is(err, context.Canceled):
		st.Status = stateCancelled
		st.Error = err.Error()
		s.failed++
	default:
		st.Status = stateFailed
		st.Error = err.Error()
		s.failed++
	}
	s.logger.Debug().Str("run_id", job.RunID).Str("status", st.Status).Msg("run finished")
}

// handleGetRun returns a run started by this process, falling back to the run store.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	st, ok := s.runs[id]
	var out runState
	if ok {
		out = *st
	}
	s.mu.Unlock()

	if ok {
		s.writeRun(w, out)
		return
	}

	if s.runStore == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	record, err := s.runStore.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out = runState{
		RunID:      record.RunID,
		Status:     stateCompleted,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
		BestScore:  record.BestScore,
		record:     record,
	}
	s.writeRun(w, out)
}

// writeRun attaches the rendered report of a completed run.
func (s *Server) writeRun(w http.ResponseWriter, out runState) {
	if out.record != nil {
		data, err := reporting.RenderJSON(s.generator.FromRun(out.record))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out.Report = data
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListRuns lists runs started by this process and persisted runs, newest first.
// Reports are omitted; fetch a single run for its report.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := make([]runState, 0, len(s.runs))
	seen := make(map[string]bool, len(s.runs))
	for _, st := range s.runs {
		list = append(list, *st)
		seen[st.RunID] = true
	}
	s.mu.Unlock()

	if s.runStore != nil {
		records, err := s.runStore.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, rec := range records {
			if seen[rec.RunID] {
				continue
			}
			list = append(list, runState{
				RunID:      rec.RunID,
				Status:     stateCompleted,
				StartedAt:  rec.StartedAt,
				FinishedAt: rec.FinishedAt,
				BestScore:  rec.BestScore,
			})
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].StartedAt.After(list[j].StartedAt)
		}
		return list[i].RunID < list[j].RunID
	})
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) buildRequest(body runRequest) (orchestrator.Request, error) {
	cfg := s.defaults
	if body.InitialCapital != nil {
		cfg.InitialCapital = *body.InitialCapital
	}
	if body.PopulationSize != nil {
		cfg.PopulationSize = *body.PopulationSize
	}
	if body.NumGenerations != nil {
		cfg.NumGenerations = *body.NumGenerations
	}
	if body.MutationRate != nil {
		cfg.MutationRate = *body.MutationRate
	}
	if body.NumPots != nil {
		cfg.NumPots = *body.NumPots
	}
	if body.Workers != nil {
		cfg.Workers = *body.Workers
	}

	req := orchestrator.Request{Config: cfg, Seed: s.seed}
	if body.Seed != nil {
		req.Seed = *body.Seed
	}

	var err error
	if body.From != "" {
		if req.From, err = time.Parse(domain.DateLayout, body.From); err != nil {
			return req, errors.New("from: expected YYYY-MM-DD")
		}
	}
	if body.To != "" {
		if req.To, err = time.Parse(domain.DateLayout, body.To); err != nil {
			return req, errors.New("to: expected YYYY-MM-DD")
		}
	}
	return req, nil
}

// statusForError maps preparation errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, priceseries.ErrInvalidSeries),
		errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrNoPrices):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
