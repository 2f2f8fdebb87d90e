package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newIdentifyCommand(opts *rootOptions) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "identify <image|->",
		Short: "Identify the tool in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context()) // nolint:errcheck // best-effort shutdown

			image, err := readUpload(args[0], cmd.InOrStdin(), a.Config.Provider.MaxUploadBytes)
			if err != nil {
				return err
			}
			if mimeType == "" && args[0] != "-" {
				mimeType = mimeFromPath(args[0])
			}

			names, err := a.Vision.Identify(cmd.Context(), image, mimeType)
			if err != nil {
				return userError(err)
			}
			if len(names) == 0 {
				return fmt.Errorf("no tool recognised")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "image media type (detected when empty)")
	return cmd
}
