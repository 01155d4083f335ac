package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wmc1992/npustat/internal"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the npustat version",
		Args:  cobra.NoArgs,
		// the version check needs no config
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE:              runVersion,
	}
	cmd.Flags().Bool("check", false, "check GitHub for a newer release")
	cmd.Flags().String("release-url", internal.DefaultReleaseURL, "release API to check against")
	_ = cmd.Flags().MarkHidden("release-url")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, internal.VersionLine())

	check, _ := cmd.Flags().GetBool("check")
	if !check {
		return nil
	}
	url, _ := cmd.Flags().GetString("release-url")

	info, err := internal.CheckForUpdates(cmd.Context(), nil, url, internal.Version)
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}
	switch {
	case info.CurrentVersion == "dev":
		fmt.Fprintln(out, "development build, skipping update check")
	case info.Available:
		current := info.CurrentVersion
		if !strings.HasPrefix(current, "v") {
			current = "v" + current
		}
		fmt.Fprintf(out, "Update available! %s -> %s %s\n", current, info.LatestVersion, info.ReleaseURL)
	default:
		fmt.Fprintln(out, "npustat is up to date")
	}
	return nil
}
