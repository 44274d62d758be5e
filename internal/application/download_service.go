package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/bnema/itcsync/internal/logging"
	"github.com/bnema/itcsync/internal/ports"
)

const DefaultDownloadTimeout = 120 * time.Second

// DownloadService executes download_dsym tasks. Delivery is at least once,
// so a build that already has a record is skipped.
type DownloadService struct {
	records    ports.SyncRecordRepository
	downloader ports.ArtifactDownloader
	store      ports.ArtifactStore
	clock      ports.Clock
	timeout    time.Duration
}

func NewDownloadService(records ports.SyncRecordRepository, downloader ports.ArtifactDownloader, store ports.ArtifactStore, clock ports.Clock, timeout time.Duration) *DownloadService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}

	return &DownloadService{
		records:    records,
		downloader: downloader,
		store:      store,
		clock:      clock,
		timeout:    timeout,
	}
}

// Download is a ports.TaskHandler.
func (s *DownloadService) Download(ctx context.Context, task domain.Task) error {
	if task.Name != domain.TaskDownloadDSYM {
		return fmt.Errorf("%w: %s", domain.ErrUnknownTask, task.Name)
	}

	key := task.Build.Key()
	logger := logging.ForProject(string(task.Project)).With().
		Str("task_id", task.ID).
		Str("build", key.String()).
		Logger()

	records, err := s.records.SyncRecords(ctx, task.Project)
	if err != nil {
		return fmt.Errorf("load sync records: %w", err)
	}
	if _, ok := records[key]; ok {
		logger.Debug().Msg("build already synced, skipping download")
		return nil
	}

	downloadCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	archive, err := s.downloader.Download(downloadCtx, task.URL)
	if err != nil {
		logger.Warn().Err(err).Msg("download debug symbols, retrying next cycle")
		return fmt.Errorf("download build %s: %w", key, err)
	}

	files, err := s.store.StoreDebugSymbols(ctx, task.Project, task.Build, archive)
	if err != nil {
		return fmt.Errorf("store debug symbols for build %s: %w", key, err)
	}

	refs := make([]string, 0, len(files))
	for _, file := range files {
		refs = append(refs, file.Ref)
	}

	inserted, err := s.records.RecordSynced(ctx, task.Project, domain.SyncRecord{
		Key:          key,
		Downloaded:   true,
		ArtifactRefs: refs,
		SyncedAt:     s.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("record build %s: %w", key, err)
	}
	if !inserted {
		logger.Debug().Msg("build recorded by a concurrent download")
		return nil
	}

	logger.Info().Int("files", len(files)).Int("bytes", len(archive)).Msg("stored debug symbols")
	return nil
}
