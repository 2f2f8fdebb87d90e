package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolify/app"
	"github.com/jonwraymond/toolify/stats"
)

func newKeysCommand(opts *rootOptions) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Show the configured key pool",
		Long: `List the configured keys by fingerprint with their state and recorded usage.
"Last min" counts attempts in the current clock minute. Secrets are never
printed. --reset clears recorded usage before listing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context()) // nolint:errcheck // best-effort shutdown

			if reset {
				if err := a.ResetStats(cmd.Context()); err != nil {
					return err
				}
			}
			reports, err := a.Keys(cmd.Context())
			if err != nil {
				return err
			}
			renderKeys(cmd.OutOrStdout(), reports, a.Pool.Cooldown().String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "clear recorded usage first")
	return cmd
}

func renderKeys(w io.Writer, reports []app.KeyReport, cooldown string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "ID", "State", "Remaining", "Attempts", "Rate limited", "Successes", "Last min"})

	active := 0
	usage := make(map[string]stats.Counts, len(reports))
	for _, r := range reports {
		index := fmt.Sprint(r.Index)
		if r.Current {
			index += "*"
		}
		if r.State == "active" {
			active++
		}
		usage[r.ID] = r.Usage
		t.AppendRow(table.Row{
			index,
			r.ID,
			r.State,
			r.Remaining,
			r.Usage.Attempts,
			r.Usage.RateLimited,
			r.Usage.Successes,
			r.LastMinute.Attempts,
		})
	}
	total := stats.Total(usage)
	t.AppendFooter(table.Row{
		"", "",
		fmt.Sprintf("%d/%d active", active, len(reports)),
		"cooldown " + cooldown,
		total.Attempts,
		total.RateLimited,
		total.Successes,
	})
	t.Render()
}
