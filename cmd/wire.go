package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bnema/itcsync/internal/adapters/itunesconnect"
	statusadapter "github.com/bnema/itcsync/internal/adapters/render/status"
	tomlrepo "github.com/bnema/itcsync/internal/adapters/repo/toml"
	chainstore "github.com/bnema/itcsync/internal/adapters/secrets/chain"
	filestore "github.com/bnema/itcsync/internal/adapters/secrets/file"
	passstore "github.com/bnema/itcsync/internal/adapters/secrets/pass"
	"github.com/bnema/itcsync/internal/adapters/symbols"
	"github.com/bnema/itcsync/internal/adapters/worker"
	"github.com/bnema/itcsync/internal/application"
	"github.com/bnema/itcsync/internal/config"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/logging"
	"github.com/bnema/itcsync/internal/metrics"
	"github.com/bnema/itcsync/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	cfg            *viper.Viper
	projects       *tomlrepo.ProjectRepository
	state          *tomlrepo.StateRepository
	secrets        ports.SecretStore
	connector      *itunesconnect.Connector
	metrics        *metrics.Registry
	config         *application.ConfigService
	statusRenderer func([]domain.ProjectStatus, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg, err := config.New(homeDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(config.LogSettings(cfg))

	projects, err := tomlrepo.NewProjectRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire project repository: %w", err)
	}
	state, err := tomlrepo.NewStateRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire state repository: %w", err)
	}

	secrets, err := newSecretStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	registry := metrics.New()
	itc := config.ITCSettings(cfg)
	connector, err := itunesconnect.NewConnector(itunesconnect.Config{
		BaseURL:           itc.BaseURL,
		AuthURL:           itc.AuthURL,
		RequestTimeout:    itc.RequestTimeout,
		RequestsPerSecond: itc.RequestsPerSecond,
		Burst:             itc.Burst,
		Observer:          registry,
	})
	if err != nil {
		return nil, fmt.Errorf("wire itunes connect connector: %w", err)
	}

	return &app{
		cfg:            cfg,
		projects:       projects,
		state:          state,
		secrets:        secrets,
		connector:      connector,
		metrics:        registry,
		config:         application.NewConfigService(projects, state, secrets, connector, ports.SystemClock{}),
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}, nil
}

func newSecretStore(cfg *viper.Viper) (ports.SecretStore, error) {
	root := cfg.GetString(config.KeySecretsPath)
	var passOpts []passstore.Option
	if dir := cfg.GetString(config.KeySecretsPassDir); dir != "" {
		passOpts = append(passOpts, passstore.WithStoreDir(dir))
	}

	switch backend := cfg.GetString(config.KeySecretsBackend); backend {
	case "", "chain":
		return chainstore.NewPassFirstWithFileFallback(root, passOpts...)
	case "pass":
		return passstore.NewStore(passOpts...), nil
	case "file":
		return filestore.NewStore(root), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", backend)
	}
}

func (a *app) syncService(dispatcher ports.Dispatcher) *application.SyncService {
	settings := config.SyncSettings(a.cfg)

	return application.NewSyncService(application.SyncDeps{
		Projects:    a.projects,
		State:       a.state,
		Credentials: application.NewCredentialResolver(a.secrets),
		Connector:   a.connector,
		Dispatcher:  dispatcher,
		Clock:       ports.SystemClock{},
		Observer:    a.metrics,
	}, application.SyncConfig{
		SoftBudget:   settings.SoftBudget,
		HardDeadline: settings.HardDeadline,
	})
}

func (a *app) downloadService() *application.DownloadService {
	settings := config.SyncSettings(a.cfg)
	downloader := &itunesconnect.Downloader{Timeout: settings.DownloadTimeout}
	store := symbols.NewStore(a.cfg.GetString(config.KeySymbolsPath))

	return application.NewDownloadService(a.state, downloader, store, ports.SystemClock{}, settings.DownloadTimeout)
}

// inlineDispatcher runs downloads on the calling goroutine so a one-shot sync
// finishes its artifacts before returning.
func (a *app) inlineDispatcher(ctx context.Context) *worker.Inline {
	inline := worker.NewInline(ctx)
	inline.Register(domain.TaskDownloadDSYM, a.downloadService().Download)
	return inline
}

func (a *app) workerPool() *worker.Pool {
	settings := config.SyncSettings(a.cfg)
	pool := worker.NewPool(worker.Config{
		Workers:   settings.Workers,
		QueueSize: settings.QueueSize,
		Observer:  a.metrics,
	})
	pool.Register(domain.TaskDownloadDSYM, a.downloadService().Download)
	return pool
}
