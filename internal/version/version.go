// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package version formats the build information of the logkit binary.
package version

import (
	"runtime"

	"github.com/mia-platform/logkit/internal/info"
)

var (
	// Version is injected at build time via the Makefile.
	Version = info.Version
	// BuildDate is injected at build time via the Makefile.
	BuildDate = info.BuildDate
)

// ServiceVersionInformation returns the version line printed by the version command.
func ServiceVersionInformation() string {
	return String(Version, BuildDate, runtime.Version())
}

// String formats version, the optional buildDate and the Go runtime version.
func String(version, buildDate, runtimeVersion string) string {
	outputString := version
	if buildDate != "" {
		outputString += " (" + buildDate + ")"
	}

	return outputString + ", Go Version: " + runtimeVersion
}
