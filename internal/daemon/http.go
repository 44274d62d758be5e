package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/bnema/itcsync/internal/application"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/logging"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

// StatusSource answers status queries from stored state.
type StatusSource interface {
	Status(ctx context.Context, id domain.ProjectID) (domain.ProjectStatus, error)
}

// SyncTrigger runs a project on demand and exposes its current phase.
type SyncTrigger interface {
	RunProject(ctx context.Context, id domain.ProjectID) (application.RunReport, error)
	Phase(id domain.ProjectID) domain.SyncPhase
}

type RouterDeps struct {
	Status  StatusSource
	Sync    SyncTrigger
	Metrics http.Handler
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/projects/{id}", func(r chi.Router) {
		r.Get("/status", statusHandler(deps))
		if deps.Sync != nil {
			r.Post("/sync", syncHandler(deps.Sync))
		}
	})

	return r
}

type appView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	BundleID  string   `json:"bundle_id"`
	Team      string   `json:"team"`
	Platforms []string `json:"platforms"`
	Active    bool     `json:"active"`
}

type statusView struct {
	Project      string    `json:"project"`
	State        string    `json:"state"`
	Summary      string    `json:"summary"`
	Diagnostic   string    `json:"diagnostic,omitempty"`
	Phase        string    `json:"phase"`
	SyncedBuilds int       `json:"synced_builds"`
	Apps         []appView `json:"apps"`
}

func newStatusView(status domain.ProjectStatus, phase domain.SyncPhase) statusView {
	view := statusView{
		Project:      string(status.Project.ID),
		State:        string(status.State),
		Summary:      status.Summary(),
		Diagnostic:   status.Diagnostic,
		Phase:        string(phase),
		SyncedBuilds: status.SyncedBuilds,
		Apps:         []appView{},
	}
	if status.Directory != nil {
		for teamApp := range status.Directory.Apps() {
			view.Apps = append(view.Apps, appView{
				ID:        string(teamApp.App.ID),
				Name:      teamApp.App.Name,
				BundleID:  teamApp.App.BundleID,
				Team:      string(teamApp.TeamID),
				Platforms: teamApp.App.Platforms,
				Active:    status.ActiveApps[teamApp.App.ID],
			})
		}
		sort.Slice(view.Apps, func(i, j int) bool { return view.Apps[i].Name < view.Apps[j].Name })
	}
	return view
}

func statusHandler(deps RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := domain.ProjectID(chi.URLParam(r, "id"))
		status, err := deps.Status.Status(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		phase := domain.PhaseIdle
		if deps.Sync != nil {
			phase = deps.Sync.Phase(id)
		}
		writeJSON(w, http.StatusOK, newStatusView(status, phase))
	}
}

type runView struct {
	RunID             string `json:"run_id"`
	Phase             string `json:"phase"`
	Skipped           string `json:"skipped,omitempty"`
	AwaitingTwoFactor bool   `json:"awaiting_two_factor"`
	Dispatched        int    `json:"dispatched"`
	Unavailable       int    `json:"unavailable"`
	AlreadySynced     int    `json:"already_synced"`
	Failed            int    `json:"failed"`
}

func syncHandler(trigger SyncTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := domain.ProjectID(chi.URLParam(r, "id"))
		report, err := trigger.RunProject(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, runView{
			RunID:             report.RunID,
			Phase:             string(report.Phase),
			Skipped:           report.SkipReason,
			AwaitingTwoFactor: report.AwaitingTwoFactor,
			Dispatched:        report.Dispatched,
			Unavailable:       report.Unavailable,
			AlreadySynced:     report.AlreadySynced,
			Failed:            report.Failed,
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRunInFlight):
		status = http.StatusConflict
	case domain.IsSessionFatal(err), errors.Is(err, domain.ErrTransport):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug().Err(err).Msg("write response")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Dur("elapsed", time.Since(started)).
			Msg("http request")
	})
}

// HTTPServer matches the lifecycle methods of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server under the supervisor.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string {
	return "http-server"
}
