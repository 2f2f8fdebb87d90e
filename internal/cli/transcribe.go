package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTranscribeCommand(opts *rootOptions) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "transcribe <audio|->",
		Short: "Transcribe an audio clip",
		Long: `Transcribe an audio clip. wav, ogg, m4a/mp4, aac and webm are recognised
from --mime or the file extension; anything else is sent as mp3.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context()) // nolint:errcheck // best-effort shutdown

			audio, err := readUpload(args[0], cmd.InOrStdin(), a.Config.Provider.MaxUploadBytes)
			if err != nil {
				return err
			}
			if mimeType == "" {
				mimeType = args[0]
			}

			text, err := a.Transcriber.Transcribe(cmd.Context(), audio, mimeType)
			if err != nil {
				return userError(err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "audio media type or extension")
	return cmd
}
