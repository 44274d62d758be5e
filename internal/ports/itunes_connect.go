package ports

import (
	"context"
	"iter"

	"github.com/bnema/itcsync/internal/domain"
)

type SessionClient interface {
	Login(ctx context.Context, creds domain.Credentials) error
	SubmitTwoFactor(ctx context.Context, code string) error
	SelectTeam(ctx context.Context, team domain.TeamID) error
	State() domain.SessionState
	Logout()
}

type Directory interface {
	Teams(ctx context.Context) ([]domain.Team, error)
	Apps(ctx context.Context) iter.Seq2[domain.TeamApp, error]
	Snapshot(ctx context.Context) (domain.Directory, error)
}

type BuildDiscovery interface {
	AppBuilds(ctx context.Context, app domain.App, team domain.TeamID) iter.Seq2[domain.Build, error]
	// ResolveArtifactURL returns domain.ErrArtifactUnavailable when the
	// vendor holds no symbols for the build.
	ResolveArtifactURL(ctx context.Context, build domain.Build) (string, error)
}

// Connection bundles the vendor components sharing one web session.
type Connection interface {
	Session() SessionClient
	// Directory returns a fetch-scoped directory; every call starts fresh.
	Directory() Directory
	Builds() BuildDiscovery
}

type Connector interface {
	Connect(state domain.SessionState) Connection
}
