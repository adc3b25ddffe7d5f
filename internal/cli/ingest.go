package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/engram/internal/memory"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <fragments.jsonl>",
	Short: "Feed a JSONL fragment stream into the engine",
	Long: `Reads one fragment per line, sorts by creation time, and delivers each
fragment to the cluster manager and the episodic timeline. Sorting here
enforces the engine's non-decreasing creation-time contract for a single
logical stream.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open fragment stream: %w", err)
		}
		defer f.Close()

		var fragments []memory.Fragment
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var frag memory.Fragment
			if err := json.Unmarshal([]byte(line), &frag); err != nil {
				return fmt.Errorf("line %d: decode fragment: %w", lineNo, err)
			}
			if frag.ID == "" {
				return fmt.Errorf("line %d: fragment id is required", lineNo)
			}
			if frag.CreatedAt.IsZero() {
				return fmt.Errorf("line %d: fragment created_at is required", lineNo)
			}
			fragments = append(fragments, frag)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read fragment stream: %w", err)
		}

		sort.SliceStable(fragments, func(i, j int) bool {
			return fragments[i].CreatedAt.Before(fragments[j].CreatedAt)
		})

		eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		clustersTouched := 0
		for _, frag := range fragments {
			if err := eng.store.SaveFragment(ctx, frag); err != nil {
				return err
			}
			affected, err := eng.clusters.ProcessNewFragment(ctx, frag)
			if err != nil {
				return err
			}
			clustersTouched += len(affected)
			if err := eng.timeline.ProcessNewFragment(ctx, frag); err != nil {
				return err
			}
		}

		log.Info().
			Int("fragments", len(fragments)).
			Int("cluster_updates", clustersTouched).
			Msg("ingest complete")
		fmt.Fprintf(cmd.OutOrStdout(), "ingested %d fragments\n", len(fragments))
		return nil
	},
}
