// Package buildinfo stamps the server binary with a version, mirroring
// pkg/engine/engine.go's var version = build.NewVersion(...) convention.
package buildinfo

import "github.com/seekerror/build"

// Version is the server's build version, logged at startup and exposed
// for diagnostics.
var Version = build.NewVersion(0, 1, 0)
