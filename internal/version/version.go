package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/lla/internal/version.Version=0.3.0
//	  -X github.com/soyeahso/lla/internal/version.Commit=abc123
//	  -X github.com/soyeahso/lla/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ProtocolLine describes the plugin protocol versions this binary accepts.
func ProtocolLine(versions []uint32) string {
	return fmt.Sprintf("plugin protocol: %v", versions)
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("lla %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
