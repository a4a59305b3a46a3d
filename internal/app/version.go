package app

import "runtime"

// Build-time variables set via -ldflags. For example:
//
//	go build -ldflags "-X github.com/large-farva/pothole-engine/internal/app.Version=v1.0.0"
var (
	Version   = "dev"
	GoVersion = "unknown"
	BuiltAt   = "unknown"
)

// VersionInfo is the /api/version payload.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	BuiltAt   string `json:"built_at"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func versionInfo() VersionInfo {
	goVersion := GoVersion
	if goVersion == "unknown" {
		goVersion = runtime.Version()
	}
	return VersionInfo{
		Version:   Version,
		GoVersion: goVersion,
		BuiltAt:   BuiltAt,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
