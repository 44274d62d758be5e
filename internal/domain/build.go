package domain

import (
	"fmt"
	"strings"
)

type Build struct {
	AppID    AppID
	TeamID   TeamID
	Platform string
	Version  string
	BuildID  string
}

// BuildKey identifies a build across sync runs. At most one SyncRecord exists
// per key.
type BuildKey struct {
	AppID    AppID
	Platform string
	Version  string
	BuildID  string
}

func (b Build) Key() BuildKey {
	return BuildKey{
		AppID:    b.AppID,
		Platform: b.Platform,
		Version:  b.Version,
		BuildID:  b.BuildID,
	}
}

func (k BuildKey) String() string {
	return strings.Join([]string{string(k.AppID), k.Platform, k.Version, k.BuildID}, "/")
}

func ParseBuildKey(raw string) (BuildKey, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 4 {
		return BuildKey{}, fmt.Errorf("invalid build key %q", raw)
	}
	for _, part := range parts {
		if part == "" {
			return BuildKey{}, fmt.Errorf("invalid build key %q", raw)
		}
	}

	return BuildKey{AppID: AppID(parts[0]), Platform: parts[1], Version: parts[2], BuildID: parts[3]}, nil
}
