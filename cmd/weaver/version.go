package main

import (
	"fmt"

	"github.com/alvmarrod/artifact-weaver/internal/version"
	"github.com/alvmarrod/artifact-weaver/internal/versionfunc"
	"github.com/alvmarrod/artifact-weaver/internal/versioning"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	funcs := versionfunc.New(versioning.NewGenericScheme())

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the weaver version or evaluate version functions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "weaver %s\n", version.Version)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "compare A B",
		Short: "Print -1, 0 or 1 as A is lower, equal or greater than B",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			greater, err := funcs.IsGreater(args[0], args[1])
			if err != nil {
				return err
			}
			lower, err := funcs.IsLower(args[0], args[1])
			if err != nil {
				return err
			}

			rel := 0
			switch {
			case greater:
				rel = 1
			case lower:
				rel = -1
			}
			fmt.Fprintln(cmd.OutOrStdout(), rel)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "severity FROM TO",
		Short: "Classify an upgrade as MAJOR, MINOR or PATCH",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			severity, err := funcs.UpgradeSeverity(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), severity)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "same-major A B",
		Short: "Report whether A and B share a major version",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), funcs.IsSameMajor(args[0], args[1]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "same-minor A B",
		Short: "Report whether A and B share major and minor versions",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), funcs.IsSameMinor(args[0], args[1]))
		},
	})

	return cmd
}
