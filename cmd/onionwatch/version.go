package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo is the version triple printed by the version command.
type buildInfo struct {
	Version string
	Commit  string
	Date    string
}

// readBuildInfo prefers ldflags, then the module build info, then
// placeholders.
func readBuildInfo() buildInfo {
	bi := buildInfo{Version: version, Commit: commit, Date: date}

	info, ok := debug.ReadBuildInfo()
	if ok {
		if bi.Version == "" && info.Main.Version != "" {
			bi.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && bi.Commit == "":
				bi.Commit = s.Value
				if len(bi.Commit) > 7 {
					bi.Commit = bi.Commit[:7]
				}
			case s.Key == "vcs.time" && bi.Date == "":
				bi.Date = s.Value
			}
		}
	}

	if bi.Version == "" {
		bi.Version = "(devel)"
	}
	if bi.Commit == "" {
		bi.Commit = "unknown"
	}
	if bi.Date == "" {
		bi.Date = "unknown"
	}
	return bi
}

func getVersion() string {
	return readBuildInfo().Version
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of onionwatch.`,
		Run: func(cmd *cobra.Command, _ []string) {
			bi := readBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "onionwatch version %s\n", bi.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", bi.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", bi.Date)
		},
	}
}
