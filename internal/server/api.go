// Package server exposes the device-local JSON API the scouting UI talks
// to. It carries no sync logic of its own; every operation delegates to the
// orchestrator or the repositories.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"scout-sync/internal/domain"
	"scout-sync/internal/metrics"
	"scout-sync/internal/repository"
	"scout-sync/internal/syncer"
	"scout-sync/internal/transport"

	"github.com/rs/zerolog"
)

type API struct {
	orchestrator *syncer.Orchestrator
	records      *repository.RecordRepository
	teams        *repository.TeamStatsRepository
	session      *transport.Session
	logger       zerolog.Logger
}

func NewAPI(
	orchestrator *syncer.Orchestrator,
	records *repository.RecordRepository,
	teams *repository.TeamStatsRepository,
	session *transport.Session,
	logger zerolog.Logger,
) *API {
	return &API{
		orchestrator: orchestrator,
		records:      records,
		teams:        teams,
		session:      session,
		logger:       logger.With().Str("component", "api").Logger(),
	}
}

func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/records", a.submitRecord)
	mux.HandleFunc("GET /api/records", a.listRecords)
	mux.HandleFunc("DELETE /api/records/{id}", a.deleteRecord)
	mux.HandleFunc("GET /api/teams", a.listTeams)
	mux.HandleFunc("GET /api/teams/{team}", a.getTeam)
	mux.HandleFunc("POST /api/sync", a.triggerSync)
	mux.HandleFunc("POST /api/sync/force", a.forceSync)
	mux.HandleFunc("GET /api/status", a.status)
	mux.HandleFunc("GET /healthz", a.healthz)
	mux.Handle("GET /metrics", metrics.Handler())
}

func (a *API) submitRecord(w http.ResponseWriter, r *http.Request) {
	var rec domain.MatchRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	saved, err := a.orchestrator.SubmitRecord(r.Context(), &rec)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRecord) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		a.logger.Error().Err(err).Msg("failed to submit record")
		writeError(w, http.StatusInternalServerError, "failed to store record")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	var (
		records []domain.MatchRecord
		err     error
	)
	if team := r.URL.Query().Get("team"); team != "" {
		records, err = a.records.ListByTeam(r.Context(), team)
	} else if state := r.URL.Query().Get("sync_state"); state != "" {
		records, err = a.records.ListBySyncState(r.Context(), domain.SyncState(state))
	} else {
		records, err = a.records.ListAll(r.Context())
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list records")
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if records == nil {
		records = []domain.MatchRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.orchestrator.DeleteRecord(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		a.logger.Error().Err(err).Str("record_id", id).Msg("failed to delete record")
		writeError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := a.teams.List(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list teams")
		writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	if teams == nil {
		teams = []domain.TeamStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (a *API) getTeam(w http.ResponseWriter, r *http.Request) {
	team := r.PathValue("team")
	stats, err := a.teams.Get(r.Context(), team)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("team", team).Msg("failed to get team")
		writeError(w, http.StatusInternalServerError, "failed to get team")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) triggerSync(w http.ResponseWriter, r *http.Request) {
	report, err := a.orchestrator.FullSync(r.Context())
	if err != nil {
		a.logger.Warn().Err(err).Msg("manual sync failed")
		writeError(w, http.StatusBadGateway, "sync failed, will retry when the connection is back")
		return
	}
	if _, err := a.orchestrator.PushPending(r.Context()); err != nil {
		a.logger.Warn().Err(err).Msg("manual push failed")
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) forceSync(w http.ResponseWriter, r *http.Request) {
	report, err := a.orchestrator.ForcePush(r.Context())
	if err != nil {
		a.logger.Warn().Err(err).Msg("force sync failed")
		writeError(w, http.StatusBadGateway, "sync failed, will retry when the connection is back")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	pending, err := a.records.ListBySyncState(r.Context(), domain.SyncPending)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to count pending records")
		writeError(w, http.StatusInternalServerError, "failed to read status")
		return
	}
	failed, err := a.records.ListBySyncState(r.Context(), domain.SyncFailed)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to count failed records")
		writeError(w, http.StatusInternalServerError, "failed to read status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_state": a.session.State(),
		"queue_depth":   a.session.QueueLen(),
		"pending":       len(pending),
		"failed":        len(failed),
	})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already out; nothing left to do.
		_ = err
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
