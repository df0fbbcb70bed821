package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const devVersion = "0.1.0-dev"

// Populated through -ldflags "-X github.com/openmined/gamebox/internal/version.Version=..."
var (
	AppName   = "GameBox"
	Version   = devVersion
	Revision  = "HEAD"
	BuildDate = ""
)

// fillFromBuild only overwrites values that ldflags left at their defaults.
func fillFromBuild(module string, vcs map[string]string) {
	if (Version == devVersion || Version == "") && module != "" && module != "(devel)" {
		Version = strings.TrimPrefix(module, "v")
	}

	if rev, ok := vcs["vcs.revision"]; ok && rev != "" && (Revision == "HEAD" || Revision == "") {
		if len(rev) > 12 {
			rev = rev[:12]
		}
		if vcs["vcs.modified"] == "true" {
			rev += "+dirty"
		}
		Revision = rev
	}

	if BuildDate == "" {
		BuildDate = vcs["vcs.time"]
	}
}

// Short - `0.1.0 (5e23a4c1b2d3)`
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// ShortWithApp - `GameBox 0.1.0 (5e23a4c1b2d3)`
func ShortWithApp() string {
	return AppName + " " + Short()
}

// Detailed - `0.1.0 (5e23a4c1b2d3; go1.23.6; linux/amd64; 2025-05-01T00:00:00Z)`
func Detailed() string {
	date := BuildDate
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (%s; %s; %s/%s; %s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH, date)
}

// UserAgent is sent by the client on every request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s/%s)", AppName, Version, runtime.GOOS, runtime.GOARCH)
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}
	fillFromBuild(info.Main.Version, vcs)
}
