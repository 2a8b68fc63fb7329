package version

import (
	"os"
	"path/filepath"
	"strings"
)

// Version is set at build time:
//
//	go build -ldflags "-X nimble.viom.tech/site/internal/version.Version=1.4.0"
var Version = "dev"

// Resolve returns the build version. Builds without ldflags fall back to the
// VERSION file in dir, then to "dev".
func Resolve(dir string) string {
	if Version != "dev" && Version != "" {
		return Version
	}

	data, err := os.ReadFile(filepath.Join(dir, "VERSION"))
	if err != nil {
		return "dev"
	}
	if v := strings.TrimSpace(string(data)); v != "" {
		return v
	}
	return "dev"
}

// UserAgent identifies outbound API calls.
func UserAgent() string {
	return "nimble-site/" + Version
}
