package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/biomap-cli/internal/actions"
	"github.com/sells-group/biomap-cli/internal/fetcher"
	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/pipeline"
)

var (
	normInput      string
	normField      string
	normEntityType string
	normOutput     string
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize an identifier column and report unrecognized values",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("normalize"); err != nil {
			return err
		}
		ctx := cmd.Context()

		loader := fetcher.NewLoader()
		loader.TempDir = cfg.Input.TempDir
		ds, err := loader.Load(ctx, normInput, fetcher.LoadOptions{Name: "input", IDField: normField})
		if err != nil {
			return err
		}

		reg, err := actions.NewRegistry(actions.Deps{})
		if err != nil {
			return err
		}
		ec := pipeline.NewContext()
		ec.SetDataset(ds.Name, ds)
		strat := &model.Strategy{
			Name: "normalize",
			Steps: []model.Step{{
				Name:   "normalize",
				Action: "normalize_identifiers",
				Params: map[string]any{"dataset": ds.Name, "field": ds.IDField, "entity_type": normEntityType},
			}},
		}
		if _, err := pipeline.NewExecutor(reg).Execute(ctx, strat, ec); err != nil {
			return err
		}
		out, err := ec.Dataset(ds.Name)
		if err != nil {
			return err
		}

		recognized, _ := ec.Stat("normalize." + ds.Name + ".recognized")
		rejected, _ := ec.Stat("normalize." + ds.Name + ".rejected")
		fmt.Fprintf(os.Stderr, "%d recognized, %d rejected\n", int(recognized), int(rejected))

		if normOutput == "" || normOutput == "-" {
			return fetcher.WriteDatasetCSV(cmd.OutOrStdout(), out)
		}
		return eris.Wrap(fetcher.WriteFile(normOutput, func(w io.Writer) error {
			return fetcher.WriteDatasetCSV(w, out)
		}), "write normalized dataset")
	},
}

func init() {
	normalizeCmd.Flags().StringVarP(&normInput, "input", "i", "", "dataset path or URL (required)")
	normalizeCmd.Flags().StringVarP(&normField, "field", "f", "", "identifier column (default: first column)")
	normalizeCmd.Flags().StringVarP(&normEntityType, "type", "t", string(model.EntityGeneric), "entity type of the column")
	normalizeCmd.Flags().StringVarP(&normOutput, "output", "o", "", "output CSV (default: stdout)")
	_ = normalizeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(normalizeCmd)
}
