package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MarkDM/whisper-aws-serverless/internal/client"
	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
)

func newTranscriptCommand(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <key>",
		Short: "Print the stored transcript for an uploaded object key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.NewClient(*serverURL).Transcript(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, domain.ErrTranscriptNotFound) {
					return fmt.Errorf("no transcript for %s yet", args[0])
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Transcription)
			return nil
		},
	}
}
