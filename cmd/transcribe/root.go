package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var serverURL string

	rootCmd := &cobra.Command{
		Use:           "transcribe",
		Short:         "Upload audio files and follow their transcription",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "Transcription server base URL")

	rootCmd.AddCommand(newUploadCommand(&serverURL))
	rootCmd.AddCommand(newTranscriptCommand(&serverURL))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func defaultServerURL() string {
	if v := os.Getenv("TRANSCRIBE_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8080"
}
