package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var (
		sessionID    string
		showLanguage bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat about tools, one message per input line",
		Long: `Read messages from stdin, one per line, and print each reply.
History is kept for the session until the command exits. A failed message is
reported on stderr and is not added to the history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context()) // nolint:errcheck // best-effort shutdown

			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			failures := 0
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				reply, err := a.Chat.Send(cmd.Context(), sessionID, line)
				if err != nil {
					failures++
					fmt.Fprintln(errOut, "error:", userError(err))
					continue
				}
				if showLanguage {
					fmt.Fprintf(out, "[%s] ", reply.Language)
				}
				fmt.Fprintln(out, reply.Text)
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			if failures > 0 {
				return fmt.Errorf("%d message(s) failed", failures)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID (random when empty)")
	cmd.Flags().BoolVar(&showLanguage, "show-language", false, "prefix each reply with its detected language")
	return cmd
}
