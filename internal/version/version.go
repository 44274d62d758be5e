// Package version carries build metadata, set at link time:
//
//	go build -ldflags "-X github.com/bnema/itcsync/internal/version.Version=v1.2.0"
package version

var Version = "dev"
