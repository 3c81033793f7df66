package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"scout-sync/internal/constants"
	"scout-sync/internal/domain"
	"scout-sync/internal/identity"
	"scout-sync/internal/metrics"
	"scout-sync/internal/repository"
	"scout-sync/internal/resolver"
	"scout-sync/internal/stats"
	"scout-sync/internal/transport"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// SyncReport summarizes one orchestrated pass. It is only returned once all
// record merges and all affected aggregate recomputes have completed.
type SyncReport struct {
	RecordsPulled    int       `json:"records_pulled"`
	RecordsApplied   int       `json:"records_applied"`
	RecordsDiscarded int       `json:"records_discarded"`
	RecordsPushed    int       `json:"records_pushed"`
	Accepted         int       `json:"accepted"`
	Failed           int       `json:"failed"`
	TeamsTouched     []string  `json:"teams_touched"`
	ServerTime       time.Time `json:"server_time,omitempty"`
}

// Orchestrator coordinates the local store, the conflict resolver, the
// aggregate recalculator and both sync paths. All local mutations funnel
// through its mutex, giving the store the single-writer discipline the
// merge logic assumes.
type Orchestrator struct {
	records *repository.RecordRepository
	teams   *repository.TeamStatsRepository
	recalc  *stats.Recalculator
	res     *resolver.Resolver
	client  *Client
	session *transport.Session
	device  identity.DeviceIdentity
	logger  zerolog.Logger

	mu sync.Mutex
}

func NewOrchestrator(
	records *repository.RecordRepository,
	teamStats *repository.TeamStatsRepository,
	recalc *stats.Recalculator,
	res *resolver.Resolver,
	client *Client,
	session *transport.Session,
	device identity.DeviceIdentity,
	logger zerolog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		records: records,
		teams:   teamStats,
		recalc:  recalc,
		res:     res,
		client:  client,
		session: session,
		device:  device,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
	}
	if session != nil {
		session.On(transport.TypeNewMatch, o.handleNewMatch)
		session.On(transport.TypeDeleteMatch, o.handleDeleteMatch)
		session.On(transport.TypeSyncCompleted, o.handleSyncCompleted)
		session.On(transport.TypeConnected, o.handleConnected)
		session.OnConnect(o.onConnect)
	}
	return o
}

// SubmitRecord persists a locally scouted record as pending, recomputes the
// team aggregate, and kicks off delivery.
func (o *Orchestrator) SubmitRecord(ctx context.Context, rec *domain.MatchRecord) (*domain.MatchRecord, error) {
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now().UTC()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// A rescout of the same match keeps the canonical record ID.
	existing, err := o.records.GetByKey(ctx, rec.Key())
	switch {
	case err == nil:
		rec.RecordID = existing.RecordID
	case errors.Is(err, repository.ErrNotFound):
		if rec.RecordID == "" {
			id, err := gonanoid.New()
			if err != nil {
				return nil, fmt.Errorf("failed to generate record id: %w", err)
			}
			rec.RecordID = id
		}
	default:
		return nil, fmt.Errorf("failed to check for existing record: %w", err)
	}

	rec.OriginDevice = o.device.ID
	rec.SyncState = domain.SyncPending

	if err := o.records.Put(ctx, rec); err != nil {
		return nil, err
	}
	if _, err := o.recalc.Recompute(ctx, rec.Team); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("record_id", rec.RecordID).
		Str("key", rec.Key().String()).
		Msg("record submitted")

	if o.session != nil {
		if err := o.session.Send(transport.NewMatchMessage(o.device.ID, rec)); err != nil {
			o.logger.Warn().Err(err).Msg("failed to queue live broadcast")
		}
	}

	// Best-effort immediate push; failure leaves the record pending for the
	// next pass.
	go func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), constants.PushTimeout)
		defer cancel()
		if _, err := o.PushPending(pushCtx); err != nil {
			o.logger.Debug().Err(err).Msg("immediate push failed, record stays pending")
		}
	}()

	return rec, nil
}

// DeleteRecord removes a record on explicit user action, resets or
// recomputes the team aggregate, and tells the server.
func (o *Orchestrator) DeleteRecord(ctx context.Context, recordID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, err := o.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if err := o.records.Delete(ctx, recordID); err != nil {
		return err
	}
	if _, err := o.recalc.Recompute(ctx, rec.Team); err != nil {
		return err
	}

	o.logger.Info().Str("record_id", recordID).Str("team", rec.Team).Msg("record deleted")

	if o.session != nil {
		if err := o.session.Send(transport.DeleteMatchMessage(o.device.ID, recordID)); err != nil {
			o.logger.Warn().Err(err).Msg("failed to queue delete broadcast")
		}
	}
	return nil
}

// FullSync pulls the authoritative server state, reconciles every record
// against the local copy, then recomputes aggregates for exactly the teams
// an accepted change touched.
func (o *Orchestrator) FullSync(ctx context.Context) (*SyncReport, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	start := time.Now()

	resp, err := o.client.PullAll(ctx)
	if err != nil {
		metrics.ObserveSyncPass("failed", time.Since(start))
		return nil, fmt.Errorf("full sync pull failed: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	report := &SyncReport{RecordsPulled: len(resp.Records), ServerTime: resp.ServerTime}
	touched := make(map[string]struct{})

	for i := range resp.Records {
		team, applied, err := o.applyIncoming(ctx, &resp.Records[i], false)
		if err != nil {
			metrics.ObserveSyncPass("failed", time.Since(start))
			return nil, err
		}
		if applied {
			report.RecordsApplied++
			touched[team] = struct{}{}
		} else {
			report.RecordsDiscarded++
		}
	}

	// Server aggregates seed identity rows for teams this device has never
	// scouted; local statistics stay derived from local records only.
	for i := range resp.TeamStats {
		ts := &resp.TeamStats[i]
		if err := o.teams.EnsureTeam(ctx, ts.TeamNumber, ts.TeamName); err != nil {
			o.logger.Warn().Err(err).Str("team", ts.TeamNumber).Msg("failed to seed team identity")
		}
	}

	report.TeamsTouched = sortedKeys(touched)
	if err := o.recalc.RecomputeAll(ctx, report.TeamsTouched); err != nil {
		metrics.ObserveSyncPass("failed", time.Since(start))
		return nil, fmt.Errorf("aggregate recompute failed: %w", err)
	}

	metrics.ObserveSyncPass("ok", time.Since(start))
	o.logger.Info().
		Int("pulled", report.RecordsPulled).
		Int("applied", report.RecordsApplied).
		Int("discarded", report.RecordsDiscarded).
		Int("teams", len(report.TeamsTouched)).
		Msg("full sync completed")
	return report, nil
}

// PushPending transmits every pending and failed record. Per-record server
// acks flip state to synced; per-record validation errors mark the record
// failed without aborting the batch. The server's returned record list is
// reconciled in the same round trip.
func (o *Orchestrator) PushPending(ctx context.Context) (*SyncReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pushPendingLocked(ctx, false)
}

// ForcePush pushes with the force flag set; used by an explicit operator
// action when the server copy must be replaced wholesale.
func (o *Orchestrator) ForcePush(ctx context.Context) (*SyncReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pushPendingLocked(ctx, true)
}

func (o *Orchestrator) pushPendingLocked(ctx context.Context, force bool) (*SyncReport, error) {
	pending, err := o.records.ListBySyncState(ctx, domain.SyncPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending records: %w", err)
	}
	failed, err := o.records.ListBySyncState(ctx, domain.SyncFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed records: %w", err)
	}
	outbound := append(pending, failed...)

	report := &SyncReport{RecordsPushed: len(outbound)}
	if len(outbound) == 0 {
		return report, nil
	}

	now := time.Now().UTC()
	for i := range outbound {
		if outbound[i].TransmittedAt == nil {
			t := now
			outbound[i].TransmittedAt = &t
		}
	}

	resp, err := o.client.Push(ctx, PushRequest{Records: outbound, Force: force})
	if err != nil {
		return nil, fmt.Errorf("push failed: %w", err)
	}
	report.Accepted = resp.Accepted
	report.ServerTime = resp.ServerTime

	rejected := make(map[string]string, len(resp.Errors))
	for _, recErr := range resp.Errors {
		rejected[recErr.RecordID] = recErr.Error
	}

	touched := make(map[string]struct{})
	for i := range outbound {
		rec := &outbound[i]
		if reason, ok := rejected[rec.RecordID]; ok {
			report.Failed++
			o.logger.Warn().
				Str("record_id", rec.RecordID).
				Str("reason", reason).
				Msg("record rejected by server")
			if err := o.records.SetSyncState(ctx, rec.RecordID, domain.SyncFailed); err != nil {
				return nil, err
			}
			continue
		}
		rec.SyncState = domain.SyncSynced
		if err := o.records.Put(ctx, rec); err != nil {
			return nil, err
		}
		touched[rec.Team] = struct{}{}
	}

	// Reconcile the server's full list returned with the ack.
	for i := range resp.Records {
		team, applied, err := o.applyIncoming(ctx, &resp.Records[i], force)
		if err != nil {
			return nil, err
		}
		if applied {
			report.RecordsApplied++
			touched[team] = struct{}{}
		}
	}

	report.TeamsTouched = sortedKeys(touched)
	if err := o.recalc.RecomputeAll(ctx, report.TeamsTouched); err != nil {
		return nil, fmt.Errorf("aggregate recompute failed: %w", err)
	}

	o.logger.Info().
		Int("pushed", report.RecordsPushed).
		Int("accepted", report.Accepted).
		Int("failed", report.Failed).
		Msg("push completed")
	return report, nil
}

// applyIncoming runs one incoming record through the resolver and persists
// the winner. Callers hold the mutation lock. Returns the touched team and
// whether the store changed.
func (o *Orchestrator) applyIncoming(ctx context.Context, incoming *domain.MatchRecord, forced bool) (string, bool, error) {
	existing, err := o.records.GetByKey(ctx, incoming.Key())
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", false, fmt.Errorf("failed to look up local copy: %w", err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		existing = nil
	}

	var resolution resolver.Resolution
	if forced {
		resolution = o.res.ResolveForced(existing, incoming)
	} else {
		resolution = o.res.Resolve(existing, incoming)
	}

	switch resolution.Action {
	case resolver.ActionInsert, resolver.ActionOverwrite:
		winner := resolution.Winner
		if winner.RecordID == "" {
			id, err := gonanoid.New()
			if err != nil {
				return "", false, fmt.Errorf("failed to generate record id: %w", err)
			}
			winner.RecordID = id
		}
		if err := o.records.Put(ctx, winner); err != nil {
			return "", false, err
		}
		metrics.RecordsMerged.Inc()
		return winner.Team, true, nil
	case resolver.ActionKeep:
		metrics.RecordsDiscarded.Inc()
		return incoming.Team, false, nil
	default: // ActionReject
		metrics.RecordsDiscarded.Inc()
		o.logger.Warn().
			Str("record_id", incoming.RecordID).
			Str("reason", resolution.Reason).
			Msg("incoming record rejected")
		return incoming.Team, false, nil
	}
}

func (o *Orchestrator) handleNewMatch(msg transport.Message) {
	if msg.Match == nil {
		o.logger.Warn().Msg("new_match frame without match data")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	o.mu.Lock()
	defer o.mu.Unlock()

	team, applied, err := o.applyIncoming(ctx, msg.Match, false)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to apply broadcast record")
		return
	}
	if applied {
		if _, err := o.recalc.Recompute(ctx, team); err != nil {
			o.logger.Error().Err(err).Str("team", team).Msg("failed to recompute after broadcast")
		}
	}
}

func (o *Orchestrator) handleDeleteMatch(msg transport.Message) {
	if msg.RecordID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	o.mu.Lock()
	defer o.mu.Unlock()

	rec, err := o.records.GetByID(ctx, msg.RecordID)
	if errors.Is(err, repository.ErrNotFound) {
		return
	}
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to look up deleted record")
		return
	}
	if err := o.records.Delete(ctx, msg.RecordID); err != nil {
		o.logger.Error().Err(err).Msg("failed to apply broadcast delete")
		return
	}
	if _, err := o.recalc.Recompute(ctx, rec.Team); err != nil {
		o.logger.Error().Err(err).Str("team", rec.Team).Msg("failed to recompute after delete")
	}
}

func (o *Orchestrator) handleSyncCompleted(msg transport.Message) {
	if len(msg.Teams) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.SyncTimeout)
	defer cancel()

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.recalc.RecomputeAll(ctx, msg.Teams); err != nil {
		o.logger.Error().Err(err).Msg("failed to recompute after sync_completed")
	}
}

func (o *Orchestrator) handleConnected(msg transport.Message) {
	o.logger.Info().Time("server_time", msg.Timestamp).Msg("server acknowledged connection")
}

// onConnect runs after every (re)connect: pull server state, then flush
// anything that accumulated while offline.
func (o *Orchestrator) onConnect() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer cancel()

	if _, err := o.FullSync(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("post-connect full sync failed")
	}
	if _, err := o.PushPending(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("post-connect push failed")
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
