package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var alertSeverity string

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List active drift alerts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		alerts := eng.pulse.GetActiveAlerts(strings.ToLower(alertSeverity))
		if len(alerts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no active alerts")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSEVERITY\tDETECTED\tDESCRIPTION")
		for _, a := range alerts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				a.ID, a.DriftType, a.Severity, a.DetectedAt.Format("2006-01-02 15:04"), a.Description)
		}
		return w.Flush()
	},
}

var resolveNote string

var resolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Mark a drift alert as resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.pulse.ResolveAlert(ctx, args[0], resolveNote); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", args[0])
		return nil
	},
}

func init() {
	alertsCmd.Flags().StringVar(&alertSeverity, "severity", "", "filter by severity (low, medium, high, critical)")
	resolveCmd.Flags().StringVar(&resolveNote, "note", "", "resolution note")
}
