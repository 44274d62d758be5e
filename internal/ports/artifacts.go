package ports

import (
	"context"

	"github.com/bnema/itcsync/internal/domain"
)

type ArtifactDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type ArtifactStore interface {
	// StoreDebugSymbols splits a symbol archive into per-architecture files
	// and stores each of them.
	StoreDebugSymbols(ctx context.Context, project domain.ProjectID, build domain.Build, archive []byte) ([]domain.SymbolFile, error)
}
