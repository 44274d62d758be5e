package domain

import "time"

type SyncRecord struct {
	Key        BuildKey
	Downloaded bool
	// ArtifactRefs is empty when the vendor had no symbols for the build.
	ArtifactRefs []string
	SyncedAt     time.Time
}

type SymbolFile struct {
	Ref  string
	Name string
	Arch string
	UUID string
	Size int64
}
