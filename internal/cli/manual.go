package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolify/adapter"
)

// Manual kinds accepted by --kind.
const (
	manualFull    = "manual"
	manualSafety  = "safety"
	manualSummary = "summary"
)

func newManualCommand(opts *rootOptions) *cobra.Command {
	var (
		kind        string
		language    string
		description string
	)
	cmd := &cobra.Command{
		Use:   "manual <tool-name> <research-file|->",
		Short: "Write a user manual from research notes",
		Long: `Write documentation for a tool from research notes read from a file or stdin.
--kind selects a full manual, a safety guide or a short summary. --lang is
en, fr or pdg.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			generate, err := manualFunc(kind)
			if err != nil {
				return err
			}

			a, err := opts.loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context()) // nolint:errcheck // best-effort shutdown

			research, err := readUpload(args[1], cmd.InOrStdin(), a.Config.Provider.MaxUploadBytes)
			if err != nil {
				return err
			}

			text, err := generate(a.Manual, cmd.Context(), adapter.ManualRequest{
				ToolName:        args[0],
				ResearchContext: string(research),
				ToolDescription: description,
				Language:        language,
			})
			if err != nil {
				return userError(err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", manualFull, "manual, safety or summary")
	cmd.Flags().StringVar(&language, "lang", adapter.LanguageEnglish, "output language")
	cmd.Flags().StringVar(&description, "description", "", "visual description of the tool")
	return cmd
}

type manualMethod func(*adapter.Manual, context.Context, adapter.ManualRequest) (string, error)

func manualFunc(kind string) (manualMethod, error) {
	switch kind {
	case manualFull:
		return (*adapter.Manual).Generate, nil
	case manualSafety:
		return (*adapter.Manual).SafetyGuide, nil
	case manualSummary:
		return (*adapter.Manual).Summary, nil
	default:
		return nil, fmt.Errorf("unknown --kind %q: want %s, %s or %s", kind, manualFull, manualSafety, manualSummary)
	}
}
