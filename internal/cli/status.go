package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the overall memory health summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		summary := eng.pulse.GetHealthSummary()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status:          %s\n", summary.OverallStatus)
		fmt.Fprintf(out, "active alerts:   %d (%d critical)\n", summary.ActiveAlerts, summary.CriticalAlerts)
		fmt.Fprintf(out, "pulse checks:    %d\n", summary.Snapshots)
		if summary.Latest != nil {
			h := summary.Latest
			fmt.Fprintf(out, "coherence:       %.2f\n", h.CoherenceScore)
			fmt.Fprintf(out, "avg confidence:  %.2f\n", h.AverageConfidence)
			fmt.Fprintf(out, "fragments:       %d (%d orphaned)\n", h.TotalFragments, h.OrphanedFragments)
			fmt.Fprintf(out, "clusters:        %d\n", h.TotalClusters)
			fmt.Fprintf(out, "contradictions:  %d\n", h.ContradictionCount)
			fmt.Fprintf(out, "trend:           %s\n", h.HealthTrend)
			fmt.Fprintf(out, "last pulse:      %s\n", h.LastMaintenance.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}
