// Package api provides the HTTP status surface of the reconciliation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"potsync/application"
	"potsync/domain/entities"
	"potsync/domain/interfaces"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// TickTrigger runs ticks on demand and remembers the most recent result
type TickTrigger interface {
	Trigger(ctx context.Context) (*application.TickResult, error)
	LastResult() *application.TickResult
}

// RunHistory lists persisted sync runs
type RunHistory interface {
	ListRecent(ctx context.Context, limit int) ([]*entities.SyncRun, error)
}

// AccountLister lists the linked credit accounts
type AccountLister interface {
	ListCredit(ctx context.Context) ([]*entities.CreditAccount, error)
}

// Pinger checks a backing dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP status server
type Server struct {
	trigger   TickTrigger
	runs      RunHistory
	accounts  AccountLister
	cooldowns interfaces.CooldownManager
	health    Pinger
}

// NewServer creates a new API server
func NewServer(trigger TickTrigger, runs RunHistory, accounts AccountLister, cooldowns interfaces.CooldownManager, health Pinger) *Server {
	return &Server{
		trigger:   trigger,
		runs:      runs,
		accounts:  accounts,
		cooldowns: cooldowns,
		health:    health,
	}
}

// Handler returns the chi router with all routes mounted
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Get("/runs", s.handleListRuns)
	r.Get("/cooldowns", s.handleListCooldowns)
	r.Post("/sync", s.handleSync)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

type healthResponse struct {
	Status   string       `json:"status"`
	Database string       `json:"database"`
	LastRun  *runResponse `json:"last_run,omitempty"`
}

type runResponse struct {
	ID         string                    `json:"id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`
	Status     entities.SyncRunStatus    `json:"status"`
	Reason     string                    `json:"reason,omitempty"`
	Transfers  int                       `json:"transfers"`
	Outcomes   []entities.AccountOutcome `json:"outcomes"`
}

type cooldownResponse struct {
	Account        string                 `json:"account"`
	State          entities.CooldownState `json:"state"`
	Until          *time.Time             `json:"until,omitempty"`
	RefCardBalance *int64                 `json:"ref_card_balance,omitempty"`
	RefPotBalance  *int64                 `json:"ref_pot_balance,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if err := s.health.Ping(r.Context()); err != nil {
		log.WithError(err).Warn("Health check failed")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if last := s.trigger.LastResult(); last != nil {
		run := tickToResponse(last)
		resp.LastRun = &run
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := s.runs.ListRecent(r.Context(), limit)
	if err != nil {
		log.WithError(err).Error("Failed to list sync runs")
		writeError(w, http.StatusInternalServerError, "failed to list sync runs")
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runToResponse(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": resp})
}

func (s *Server) handleListCooldowns(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.ListCredit(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list credit accounts")
		writeError(w, http.StatusInternalServerError, "failed to list credit accounts")
		return
	}

	resp := make([]cooldownResponse, 0, len(accounts))
	for _, account := range accounts {
		status := s.cooldowns.Status(account)
		resp = append(resp, cooldownResponse{
			Account:        account.Type,
			State:          status.State,
			Until:          status.Cooldown.Until,
			RefCardBalance: status.Cooldown.RefCardBalance,
			RefPotBalance:  status.Cooldown.RefPotBalance,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"cooldowns": resp})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.trigger.Trigger(r.Context())
	if errors.Is(err, application.ErrTickInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Error("Manual sync failed")
		body := map[string]any{
			"error": map[string]string{"message": err.Error(), "type": "error"},
		}
		if result != nil {
			body["run"] = tickToResponse(result)
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"run": tickToResponse(result)})
}

func tickToResponse(result *application.TickResult) runResponse {
	finished := result.FinishedAt
	resp := runResponse{
		ID:        result.RunID,
		StartedAt: result.StartedAt,
		Status:    result.Status,
		Reason:    result.Reason,
		Transfers: result.TransferCount(),
		Outcomes:  result.Outcomes,
	}
	if !finished.IsZero() {
		resp.FinishedAt = &finished
	}
	if resp.Outcomes == nil {
		resp.Outcomes = []entities.AccountOutcome{}
	}
	return resp
}

func runToResponse(run *entities.SyncRun) runResponse {
	resp := runResponse{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     run.Status,
		Reason:     run.Reason,
		Transfers:  run.TransferCount(),
		Outcomes:   run.Outcomes,
	}
	if resp.Outcomes == nil {
		resp.Outcomes = []entities.AccountOutcome{}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    "error",
		},
	})
}
