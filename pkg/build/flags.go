// SPDX-License-Identifier: MIT
//
// Package build reports the binary's name, build time, commit and version.
// Release builds set them with linker flags:
//
//	go build -ldflags "-X spectrogram/pkg/build.buildName=spectrogram \
//	  -X spectrogram/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	  -X spectrogram/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X spectrogram/pkg/build.buildVersion=v0.3.0"
//
// Without them the values come from the module's embedded build info.
package build

import (
	"fmt"
	"runtime/debug"
)

const (
	defaultName = "spectrogram"
	Description = "Real-time stereo audio spectrum analyser"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = Info{
		Name:    defaultName,
		Time:    "unknown",
		Commit:  "unknown",
		Version: "devel",
	}
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize fills the build information. Linker flags must be set all
// together or not at all; when none are set the module build info is used.
func Initialize() error {
	flags := []struct{ name, value string }{
		{"BuildName", buildName},
		{"BuildTime", buildTime},
		{"BuildCommit", buildCommit},
		{"BuildVersion", buildVersion},
	}
	set := 0
	for _, f := range flags {
		if f.value != "" {
			set++
		}
	}

	switch set {
	case 0:
		fromModule(&buildFlags)
		return nil
	case len(flags):
		buildFlags = Info{Name: buildName, Time: buildTime, Commit: buildCommit, Version: buildVersion}
		return nil
	}
	for _, f := range flags {
		if f.value == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	return nil
}

func fromModule(info *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value[:min(len(s.Value), 12)]
		case "vcs.time":
			info.Time = s.Value
		}
	}
}

// GetBuildFlags returns the build information. Call Initialize first.
func GetBuildFlags() Info {
	return buildFlags
}
