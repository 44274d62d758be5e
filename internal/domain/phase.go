package domain

// SyncPhase is the discovery pipeline state of one project run.
type SyncPhase string

const (
	PhaseIdle                 SyncPhase = "idle"
	PhaseAuthenticating       SyncPhase = "authenticating"
	PhaseAwaitingTwoFactor    SyncPhase = "awaiting_two_factor"
	PhaseDirectoryFetch       SyncPhase = "directory_fetch"
	PhasePerAppBuildScan      SyncPhase = "per_app_build_scan"
	PhaseDispatchingDownloads SyncPhase = "dispatching_downloads"
)
