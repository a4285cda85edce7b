// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set via -ldflags "-X github.com/LeeDigitalWorks/zapmeter/cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := VersionInfo()
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(out).Encode(info)
		}
		fmt.Fprintf(out, "ZapMeter %s\n", info["version"])
		fmt.Fprintf(out, "  Git commit: %s\n", info["git_commit"])
		fmt.Fprintf(out, "  Built:      %s\n", info["build_date"])
		fmt.Fprintf(out, "  Go version: %s\n", info["go_version"])
		fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", info["os"], info["arch"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Print as JSON")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("ZapMeter {{.Version}}\n")
}

// VersionInfo returns the build metadata by name.
func VersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}
