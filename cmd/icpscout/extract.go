package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"icpscout/internal/pipeline"
)

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Extract and deduplicate companies without calling the oracle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := loadInput(a.cfg.Input.Dir)
			if err != nil {
				return err
			}
			emitter, err := a.newEmitter(cmd.Context())
			if err != nil {
				return err
			}
			p := pipeline.New(pipeline.Deps{Emitter: emitter}, a.pipelineOptions("", ""))
			ex, err := p.Extract(cmd.Context(), docs)
			if err != nil {
				return err
			}
			printExtraction(cmd.OutOrStdout(), ex, filepath.Join(a.cfg.Output.Dir, a.cfg.Output.RawFile))
			return nil
		},
	}
}

func printExtraction(out io.Writer, ex *pipeline.Extraction, rawPath string) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Documents\t%d\n", ex.Documents)
	fmt.Fprintf(tw, "Blocks\t%d (%d noise)\n", ex.Stats.Blocks, ex.Stats.Noise)
	fmt.Fprintf(tw, "Company mentions\t%d\n", len(ex.Records))
	fmt.Fprintf(tw, "Distinct companies\t%d\n", len(ex.Groups))
	fmt.Fprintf(tw, "Conflicts\t%d\n", len(ex.Conflicts))
	for _, name := range sortedKeys(ex.Stats.Patterns) {
		fmt.Fprintf(tw, "Pattern %s\t%d\n", name, ex.Stats.Patterns[name])
	}
	fmt.Fprintf(tw, "Raw records\t%s\n", rawPath)
	_ = tw.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
