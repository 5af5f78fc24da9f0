package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MarkDM/whisper-aws-serverless/internal/platform/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "transcribe %s\n", version.Get())
		},
	}
}
