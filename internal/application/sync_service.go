package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/logging"
	"github.com/bnema/itcsync/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultSoftBudget   = 60 * time.Second
	DefaultHardDeadline = 90 * time.Second
)

type SyncConfig struct {
	// SoftBudget stops scanning further apps once a run has used it up.
	SoftBudget time.Duration
	// HardDeadline bounds the whole run through its context.
	HardDeadline time.Duration
}

// RunObserver receives per-run and per-build outcomes.
type RunObserver interface {
	ObserveRun(result string, elapsed time.Duration)
	ObserveBuild(outcome string)
}

type SyncDeps struct {
	Projects    ports.ProjectRepository
	State       StateStore
	Credentials *CredentialResolver
	Connector   ports.Connector
	Dispatcher  ports.Dispatcher
	Clock       ports.Clock
	Observer    RunObserver
}

// SyncService discovers new builds and hands their symbol downloads to the
// dispatcher. Runs are serialized per project.
type SyncService struct {
	deps SyncDeps
	cfg  SyncConfig

	mu     sync.Mutex
	locks  map[domain.ProjectID]*sync.Mutex
	phases map[domain.ProjectID]domain.SyncPhase
}

func NewSyncService(deps SyncDeps, cfg SyncConfig) *SyncService {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if cfg.SoftBudget <= 0 {
		cfg.SoftBudget = DefaultSoftBudget
	}
	if cfg.HardDeadline <= 0 {
		cfg.HardDeadline = DefaultHardDeadline
	}

	return &SyncService{
		deps:   deps,
		cfg:    cfg,
		locks:  map[domain.ProjectID]*sync.Mutex{},
		phases: map[domain.ProjectID]domain.SyncPhase{},
	}
}

// Phase returns the pipeline phase of the project's current run, or idle.
func (s *SyncService) Phase(id domain.ProjectID) domain.SyncPhase {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phase, ok := s.phases[id]; ok {
		return phase
	}
	return domain.PhaseIdle
}

// RunAll runs every configured project in turn. A failing project does not
// stop the others; their errors are joined.
func (s *SyncService) RunAll(ctx context.Context) ([]RunReport, error) {
	projects, err := s.deps.Projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	reports := make([]RunReport, 0, len(projects))
	var errs []error
	for _, project := range projects {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		report, err := s.RunProject(ctx, project.ID)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", project.ID, err))
		}
	}

	return reports, errors.Join(errs...)
}

func (s *SyncService) RunProject(ctx context.Context, id domain.ProjectID) (report RunReport, err error) {
	lock := s.lockFor(id)
	if !lock.TryLock() {
		return RunReport{Project: id, Phase: s.Phase(id)}, fmt.Errorf("project %s: %w", id, domain.ErrRunInFlight)
	}
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.HardDeadline)
	defer cancel()

	report = RunReport{
		Project:   id,
		RunID:     uuid.NewString(),
		Phase:     domain.PhaseIdle,
		StartedAt: s.deps.Clock.Now(),
	}
	logger := logging.ForProject(string(id)).With().Str("run_id", report.RunID).Logger()

	defer func() {
		report.FinishedAt = s.deps.Clock.Now()
		s.clearPhase(id)

		result := report.Result(err)
		s.deps.Observer.ObserveRun(result, report.Duration())

		event := logger.Info()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.Str("result", result).
			Str("phase", string(report.Phase)).
			Int("dispatched", report.Dispatched).
			Int("unavailable", report.Unavailable).
			Int("already_synced", report.AlreadySynced).
			Dur("elapsed", report.Duration()).
			Msg("sync run finished")
	}()

	project, err := s.deps.Projects.GetByID(ctx, id)
	if err != nil {
		return report, fmt.Errorf("get project: %w", err)
	}
	if !project.Enabled {
		report.SkipReason = SkipDisabled
		return report, nil
	}

	creds, err := s.deps.Credentials.Resolve(ctx, project)
	if err != nil {
		return report, err
	}
	if !creds.Configured() {
		report.SkipReason = SkipNotConfigured
		return report, nil
	}

	state, err := s.deps.State.LoadSession(ctx, id)
	if err != nil {
		return report, fmt.Errorf("load session: %w", err)
	}
	if state.TwoFactorPending && !state.TwoFactorCompleted {
		// A new login would send the operator another code.
		s.setPhase(&report, domain.PhaseAwaitingTwoFactor)
		report.AwaitingTwoFactor = true
		return report, nil
	}

	conn := s.deps.Connector.Connect(state)
	session := conn.Session()
	defer func() {
		s.persistSession(context.WithoutCancel(ctx), logger, id, session, &report, err)
	}()

	s.setPhase(&report, domain.PhaseAuthenticating)
	if err := session.Login(ctx, creds); err != nil {
		return report, s.abort(&report, "login", err)
	}
	if current := session.State(); !current.Authenticated {
		if current.TwoFactorPending {
			s.setPhase(&report, domain.PhaseAwaitingTwoFactor)
			report.AwaitingTwoFactor = true
			logger.Info().Msg("two-factor code required")
		}
		return report, nil
	}

	s.setPhase(&report, domain.PhaseDirectoryFetch)
	directory := conn.Directory()
	snapshot, err := directory.Snapshot(ctx)
	if err != nil {
		return report, s.abort(&report, "fetch directory", err)
	}
	if err := s.deps.State.SaveDirectory(ctx, id, snapshot); err != nil {
		logger.Warn().Err(err).Msg("save directory snapshot")
	}

	active, err := s.deps.State.ActiveApps(ctx, id)
	if err != nil {
		return report, fmt.Errorf("load active apps: %w", err)
	}
	records, err := s.deps.State.SyncRecords(ctx, id)
	if err != nil {
		return report, fmt.Errorf("load sync records: %w", err)
	}

	s.setPhase(&report, domain.PhasePerAppBuildScan)
	builds := conn.Builds()
	for teamApp, err := range directory.Apps(ctx) {
		if err != nil {
			return report, s.abort(&report, "list apps", err)
		}
		if _, ok := active[teamApp.App.ID]; !ok {
			continue
		}
		if s.deps.Clock.Now().Sub(report.StartedAt) >= s.cfg.SoftBudget {
			report.BudgetExhausted = true
			logger.Info().Str("app", string(teamApp.App.ID)).Msg("sync budget exhausted, remaining apps wait for the next run")
			break
		}

		report.AppsScanned++
		if err := s.scanApp(ctx, logger, builds, teamApp, records, &report); err != nil {
			return report, err
		}
	}

	return report, nil
}

// scanApp walks one app's builds. Only session-fatal and context errors end
// the run; anything else costs at most the build or app it happened on.
func (s *SyncService) scanApp(ctx context.Context, logger zerolog.Logger, builds ports.BuildDiscovery, teamApp domain.TeamApp, records map[domain.BuildKey]domain.SyncRecord, report *RunReport) error {
	appLogger := logger.With().Str("app", string(teamApp.App.ID)).Str("team", string(teamApp.TeamID)).Logger()

	for build, err := range builds.AppBuilds(ctx, teamApp.App, teamApp.TeamID) {
		if err != nil {
			if domain.IsSessionFatal(err) || ctx.Err() != nil {
				return s.abort(report, "list builds", err)
			}
			report.Failed++
			s.deps.Observer.ObserveBuild("failed")
			appLogger.Warn().Err(err).Msg("list builds")
			return nil
		}

		report.BuildsSeen++
		key := build.Key()
		if _, done := records[key]; done {
			report.AlreadySynced++
			s.deps.Observer.ObserveBuild("already_synced")
			continue
		}

		buildLogger := appLogger.With().Str("build", key.String()).Logger()
		url, err := builds.ResolveArtifactURL(ctx, build)
		switch {
		case errors.Is(err, domain.ErrArtifactUnavailable):
			record := domain.SyncRecord{Key: key, SyncedAt: s.deps.Clock.Now()}
			if _, err := s.deps.State.RecordSynced(ctx, report.Project, record); err != nil {
				return fmt.Errorf("record build %s: %w", key, err)
			}
			records[key] = record
			report.Unavailable++
			s.deps.Observer.ObserveBuild("unavailable")
			buildLogger.Info().Msg("no debug symbols for build")
			continue
		case err != nil:
			if domain.IsSessionFatal(err) || ctx.Err() != nil {
				return s.abort(report, "resolve artifact", err)
			}
			report.Failed++
			s.deps.Observer.ObserveBuild("failed")
			buildLogger.Warn().Err(err).Msg("resolve artifact url")
			continue
		}

		if report.Phase != domain.PhaseDispatchingDownloads {
			s.setPhase(report, domain.PhaseDispatchingDownloads)
		}
		task := domain.Task{
			ID:         uuid.NewString(),
			Name:       domain.TaskDownloadDSYM,
			Project:    report.Project,
			Build:      build,
			URL:        url,
			EnqueuedAt: s.deps.Clock.Now(),
		}
		if err := s.deps.Dispatcher.Enqueue(ctx, task); err != nil {
			if errors.Is(err, domain.ErrQueueFull) {
				report.Failed++
				s.deps.Observer.ObserveBuild("failed")
				buildLogger.Warn().Err(err).Msg("download not dispatched")
				continue
			}
			return fmt.Errorf("dispatch download for build %s: %w", key, err)
		}
		report.Dispatched++
		s.deps.Observer.ObserveBuild("dispatched")
		buildLogger.Debug().Str("task_id", task.ID).Msg("download dispatched")
	}

	return nil
}

// abort classifies a run-ending error. Session-fatal errors mark the report
// so the stored session gets discarded.
func (s *SyncService) abort(report *RunReport, op string, err error) error {
	if domain.IsSessionFatal(err) {
		report.SessionDiscarded = true
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SyncService) persistSession(ctx context.Context, logger zerolog.Logger, id domain.ProjectID, session ports.SessionClient, report *RunReport, runErr error) {
	state := session.State()
	switch {
	case report.SessionDiscarded:
		state = state.Discarded(runErr.Error(), s.deps.Clock.Now())
		logger.Warn().Err(runErr).Msg("vendor rejected the session, discarding it")
	case runErr != nil:
		state.LastError = runErr.Error()
	default:
		state.LastError = ""
	}

	if err := s.deps.State.SaveSession(ctx, id, state); err != nil {
		logger.Error().Err(err).Msg("save session")
	}
}

func (s *SyncService) lockFor(id domain.ProjectID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *SyncService) setPhase(report *RunReport, phase domain.SyncPhase) {
	report.Phase = phase

	s.mu.Lock()
	s.phases[report.Project] = phase
	s.mu.Unlock()
}

func (s *SyncService) clearPhase(id domain.ProjectID) {
	s.mu.Lock()
	delete(s.phases, id)
	s.mu.Unlock()
}

type nopObserver struct{}

func (nopObserver) ObserveRun(string, time.Duration) {}
func (nopObserver) ObserveBuild(string)              {}
