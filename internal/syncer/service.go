package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencorp/clientsync/internal/domain"
	"github.com/opencorp/clientsync/internal/feed"
	"github.com/opencorp/clientsync/internal/lock"
	"github.com/opencorp/clientsync/internal/repository"
)

// actorSystem is the audit actor recorded for every sync mutation.
const actorSystem = "sync"

// sampleSize bounds the mapped-patch sample returned by previews.
const sampleSize = 3

// Service drives the reconciliation pipeline for the configured feeds.
type Service struct {
	feeds   map[string]feed.Config
	source  feed.Source
	clients repository.ClientRepository
	states  repository.SyncStateRepository
	runs    repository.SyncRunRepository
	locker  lock.Locker
	logger  zerolog.Logger
	env     string
}

// NewService wires the reconciliation service.
func NewService(
	feeds map[string]feed.Config,
	source feed.Source,
	clients repository.ClientRepository,
	states repository.SyncStateRepository,
	runs repository.SyncRunRepository,
	locker lock.Locker,
	logger zerolog.Logger,
	env string,
) *Service {
	return &Service{
		feeds:   feeds,
		source:  source,
		clients: clients,
		states:  states,
		runs:    runs,
		locker:  locker,
		logger:  logger,
		env:     env,
	}
}

// RunResult aggregates the outcome of one executed run.
type RunResult struct {
	RunID        uuid.UUID         `json:"runId"`
	Feed         string            `json:"feed"`
	DryRun       bool              `json:"dryRun"`
	RowsTotal    int               `json:"rowsTotal"`
	RowsImported int               `json:"rowsImported"`
	RowsErrors   int               `json:"rowsErrors"`
	Status       string            `json:"status"`
	Errors       []domain.RowError `json:"errors"`
}

// PreviewResult reports what a run would do, without any side effects.
type PreviewResult struct {
	Feed        string               `json:"feed"`
	FetchedRows int                  `json:"fetchedRows"`
	ValidRows   int                  `json:"validRows"`
	InvalidRows int                  `json:"invalidRows"`
	WouldCreate int                  `json:"wouldCreate"`
	WouldUpdate int                  `json:"wouldUpdate"`
	WouldSkip   int                  `json:"wouldSkip"`
	Errors      []domain.RowError    `json:"errors"`
	Sample      []domain.ClientPatch `json:"sample"`
}

// Execute runs one reconciliation for the feed key. The run is exclusive per
// feed: a second caller gets ErrLockHeld immediately instead of queueing.
// With dryRun set, the pipeline stops at the planner and storage stays
// untouched except for the fetch-failure state write.
func (s *Service) Execute(ctx context.Context, feedKey string, dryRun bool) (RunResult, error) {
	cfg, ok := s.feeds[feedKey]
	if !ok {
		return RunResult{}, ErrFeedUnknown
	}

	result := RunResult{
		RunID:  uuid.New(),
		Feed:   feedKey,
		DryRun: dryRun,
		Errors: []domain.RowError{},
	}
	started := time.Now()

	acquired, err := s.locker.TryLock(ctx, feedKey)
	if err != nil {
		return result, err
	}
	if !acquired {
		return result, ErrLockHeld
	}
	defer func() {
		if err := s.locker.Unlock(ctx, feedKey); err != nil {
			s.logger.Error().Err(err).Str("feed", feedKey).Msg("failed to release feed lock")
		}
	}()

	table, err := s.source.Fetch(ctx, cfg)
	if err != nil {
		s.logger.Error().Err(err).Str("feed", feedKey).Msg("source fetch failed")
		s.setState(ctx, feedKey, nil, domain.RunStatusError, storedError(err, s.env))
		result.Status = domain.RunStatusError
		if !dryRun {
			s.recordRun(ctx, result, started, err)
		}
		return result, err
	}

	for i, row := range table.Rows {
		mapped := feed.Map(row, i, cfg.Variant)
		if mapped == nil {
			continue
		}
		ensureReferenceCode(&mapped.Client, cfg.Variant)
		result.RowsTotal++

		existing, err := s.resolve(ctx, mapped.Client)
		if err != nil {
			result.RowsErrors++
			result.Errors = append(result.Errors, domain.RowError{Row: mapped.Index, Message: err.Error()})
			continue
		}

		plan := Plan(mapped, existing)
		if dryRun {
			switch plan.Action {
			case PlanCreate, PlanUpdate:
				result.RowsImported++
			case PlanInvalid:
				result.RowsErrors++
				result.Errors = append(result.Errors, plan.Errors...)
			}
			continue
		}

		imported, rowErr := s.apply(ctx, plan)
		if rowErr != nil {
			result.RowsErrors++
			result.Errors = append(result.Errors, *rowErr)
			s.logger.Warn().Str("feed", feedKey).Int("row", rowErr.Row).Str("error", rowErr.Message).Msg("row failed")
			continue
		}
		if imported {
			result.RowsImported++
		}
	}

	result.Status = domain.RunStatusOK
	if result.RowsErrors > 0 {
		result.Status = domain.RunStatusPartial
	}

	if !dryRun {
		now := time.Now()
		s.setState(ctx, feedKey, &now, domain.RunStatusOK, "")
		s.recordRun(ctx, result, started, nil)
	}

	s.logger.Info().
		Str("feed", feedKey).
		Bool("dry_run", dryRun).
		Int("rows_total", result.RowsTotal).
		Int("rows_imported", result.RowsImported).
		Int("rows_errors", result.RowsErrors).
		Msg("sync run finished")

	return result, nil
}

// apply commits one row plan in its own transaction. A failure is isolated to
// the row and does not abort the rest of the run.
func (s *Service) apply(ctx context.Context, plan RowPlan) (bool, *domain.RowError) {
	switch plan.Action {
	case PlanCreate:
		if _, err := s.clients.CreateWithChildren(ctx, plan.Row.Client, plan.Row.Items, plan.Row.Partners, actorSystem); err != nil {
			return false, &domain.RowError{Row: plan.Row.Index, Message: err.Error()}
		}
		return true, nil
	case PlanUpdate:
		// Reference codes are never reconciled after creation.
		patch := plan.Row.Client
		patch.ReferenceCode = plan.Existing.ReferenceCode
		if err := s.clients.UpdateWithChildren(ctx, *plan.Existing, patch, plan.Row.Items, plan.Row.Partners, actorSystem); err != nil {
			return false, &domain.RowError{Row: plan.Row.Index, Message: err.Error()}
		}
		return true, nil
	case PlanInvalid:
		rowErr := domain.RowError{Row: plan.Row.Index, Message: "invalid row"}
		if len(plan.Errors) > 0 {
			rowErr = plan.Errors[0]
		}
		return false, &rowErr
	default:
		return false, nil
	}
}

// Preview runs the pipeline through the planner stage only. It takes no lock,
// opens no write transaction, and leaves sync state and the audit log alone.
func (s *Service) Preview(ctx context.Context, feedKey string) (PreviewResult, error) {
	cfg, ok := s.feeds[feedKey]
	if !ok {
		return PreviewResult{}, ErrFeedUnknown
	}

	result := PreviewResult{
		Feed:   feedKey,
		Errors: []domain.RowError{},
		Sample: []domain.ClientPatch{},
	}

	table, err := s.source.Fetch(ctx, cfg)
	if err != nil {
		return result, err
	}
	result.FetchedRows = len(table.Rows)

	for i, row := range table.Rows {
		mapped := feed.Map(row, i, cfg.Variant)
		if mapped == nil {
			continue
		}
		ensureReferenceCode(&mapped.Client, cfg.Variant)

		existing, err := s.resolve(ctx, mapped.Client)
		if err != nil {
			result.InvalidRows++
			result.Errors = append(result.Errors, domain.RowError{Row: mapped.Index, Message: err.Error()})
			continue
		}

		switch plan := Plan(mapped, existing); plan.Action {
		case PlanCreate:
			result.ValidRows++
			result.WouldCreate++
		case PlanUpdate:
			result.ValidRows++
			result.WouldUpdate++
		case PlanUnchanged:
			result.ValidRows++
			result.WouldSkip++
		case PlanInvalid:
			result.InvalidRows++
			result.Errors = append(result.Errors, plan.Errors...)
		}

		if len(result.Sample) < sampleSize {
			result.Sample = append(result.Sample, mapped.Client)
		}
	}

	return result, nil
}

// Status returns the feed's current sync state.
func (s *Service) Status(ctx context.Context, feedKey string) (domain.SyncState, error) {
	if _, ok := s.feeds[feedKey]; !ok {
		return domain.SyncState{}, ErrFeedUnknown
	}
	return s.states.Get(ctx, feedKey)
}

// Feeds lists the configured feed keys.
func (s *Service) Feeds() []string {
	keys := make([]string, 0, len(s.feeds))
	for key := range s.feeds {
		keys = append(keys, key)
	}
	return keys
}

// RecentRuns lists persisted run history for the feed.
func (s *Service) RecentRuns(ctx context.Context, feedKey string, limit int) ([]domain.SyncRun, error) {
	if _, ok := s.feeds[feedKey]; !ok {
		return nil, ErrFeedUnknown
	}
	return s.runs.ListByFeed(ctx, feedKey, limit)
}

func (s *Service) setState(ctx context.Context, feedKey string, syncedAt *time.Time, status, message string) {
	state := domain.SyncState{
		Feed:          feedKey,
		LastSyncedAt:  syncedAt,
		LastRunStatus: status,
		LastRunError:  message,
	}
	if syncedAt == nil {
		if prev, err := s.states.Get(ctx, feedKey); err == nil {
			state.LastSyncedAt = prev.LastSyncedAt
		}
	}
	if err := s.states.Upsert(ctx, state); err != nil {
		s.logger.Error().Err(err).Str("feed", feedKey).Msg("failed to persist sync state")
	}
}

func (s *Service) recordRun(ctx context.Context, result RunResult, started time.Time, runErr error) {
	run := domain.SyncRun{
		ID:           result.RunID,
		Feed:         result.Feed,
		DryRun:       result.DryRun,
		RowsTotal:    result.RowsTotal,
		RowsImported: result.RowsImported,
		RowsErrors:   result.RowsErrors,
		Status:       result.Status,
		Error:        storedError(runErr, s.env),
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("feed", result.Feed).Msg("failed to record sync run")
	}
}
