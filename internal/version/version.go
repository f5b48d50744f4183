package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the service version.
var Version = "0.3.0"

// DevVersion is the service version of development.
var DevVersion = "0.3.0"

func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return DevVersion
	}
	return Version
}

// IsValid reports whether version is a well-formed semantic version without the "v" prefix.
func IsValid(version string) bool {
	return semver.IsValid(fmt.Sprintf("v%s", version))
}
