package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var pulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Run one pulse check over the stored fragment population",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		fragments, err := eng.store.ListFragments(ctx)
		if err != nil {
			return err
		}
		clusters := eng.clusters.GetConceptClusters(0)

		health, err := eng.pulse.RunPulseCheck(ctx, fragments, clusters)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(health, "", "  ")
		if err != nil {
			return fmt.Errorf("encode health snapshot: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
