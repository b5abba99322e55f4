package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/biomap-cli/internal/actions"
	"github.com/sells-group/biomap-cli/internal/fetcher"
	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/pipeline"
	"github.com/sells-group/biomap-cli/internal/store"
	"github.com/sells-group/biomap-cli/internal/strategy"
)

type runOptions struct {
	StrategyPath string
	Inputs       []string // name=source
	IDFields     []string // name=column
	Vars         []string // key=value
	OutputDir    string
	Export       []string
	ValidateOnly bool
}

type runOutcome struct {
	RunID   string
	Summary *pipeline.Summary
	Context *pipeline.Context
	Files   []string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a matching strategy over input datasets",
	Example: `  biomap run --strategy strategies/protein.yaml \
    --input source=data/ukbb.csv --input target=https://example.org/arivale.tsv \
    --id-field source=uniprot --var min_confidence=0.9`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := runStrategy(cmd.Context(), runOpts)
		if out != nil && out.Summary != nil {
			formatSummary(cmd.OutOrStdout(), out)
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.StrategyPath, "strategy", "s", "", "strategy YAML file (required)")
	runCmd.Flags().StringArrayVarP(&runOpts.Inputs, "input", "i", nil, "input dataset as name=path-or-url (repeatable)")
	runCmd.Flags().StringArrayVar(&runOpts.IDFields, "id-field", nil, "identifier column per dataset as name=column (default: first column)")
	runCmd.Flags().StringArrayVar(&runOpts.Vars, "var", nil, "strategy variable as key=value (repeatable)")
	runCmd.Flags().StringVarP(&runOpts.OutputDir, "output-dir", "o", "", "directory for exported results (default: output.dir)")
	runCmd.Flags().StringSliceVar(&runOpts.Export, "export", nil, "match sets or datasets to export (default: all match sets and unmatched datasets)")
	runCmd.Flags().BoolVar(&runOpts.ValidateOnly, "validate", false, "validate the strategy and exit")
	_ = runCmd.MarkFlagRequired("strategy")
	rootCmd.AddCommand(runCmd)
}

// runStrategy loads inputs, executes the strategy, exports results and
// records the run. The outcome is returned even when a required step fails
// so callers can report the partial run.
func runStrategy(ctx context.Context, opts runOptions) (*runOutcome, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "run"))

	vars, err := strategy.ParseVars(opts.Vars)
	if err != nil {
		return nil, err
	}
	strat, err := strategy.Load(opts.StrategyPath, vars)
	if err != nil {
		return nil, err
	}
	matching, err := cfg.Matching.Resolve()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	loader := fetcher.NewLoader()
	loader.TempDir = cfg.Input.TempDir

	resolver, err := buildResolver(ctx, loader, st)
	if err != nil {
		return nil, err
	}
	reg, err := actions.NewRegistry(actions.Deps{Resolver: resolver, Matching: matching})
	if err != nil {
		return nil, err
	}
	exec := pipeline.NewExecutor(reg)
	if err := exec.Validate(strat); err != nil {
		return nil, err
	}
	if opts.ValidateOnly {
		log.Info("strategy valid", zap.String("strategy", strat.Name), zap.Int("steps", len(strat.Steps)))
		return nil, nil
	}

	ec := pipeline.NewContext()
	if err := loadInputs(ctx, loader, opts, ec); err != nil {
		return nil, err
	}

	var run *store.Run
	if st != nil {
		run, err = st.CreateRun(ctx, strat.Name)
		if err != nil {
			return nil, eris.Wrap(err, "record run")
		}
		ec.RunID = run.ID
	}

	summary, execErr := exec.Execute(ctx, strat, ec)
	out := &runOutcome{RunID: ec.RunID, Summary: summary, Context: ec}

	dir := opts.OutputDir
	if dir == "" {
		dir = cfg.Output.Dir
	}
	files, exportErr := exportResults(filepath.Join(dir, ec.RunID), ec, summary, opts.Export)
	out.Files = files
	if exportErr != nil {
		log.Error("export failed", zap.Error(exportErr))
	}

	if run != nil {
		// Record the outcome even when ctx was cancelled.
		rctx := context.WithoutCancel(ctx)
		status, result := runResult(summary, ec, execErr)
		if err := st.FinishRun(rctx, run.ID, status, result); err != nil {
			log.Error("record run outcome failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	if execErr != nil {
		return out, execErr
	}
	return out, exportErr
}

// loadInputs loads every --input concurrently, bounded by
// input.max_concurrency, before the strategy starts.
func loadInputs(ctx context.Context, loader *fetcher.Loader, opts runOptions, ec *pipeline.Context) error {
	inputs, err := parsePairs("input", opts.Inputs)
	if err != nil {
		return err
	}
	idFields, err := parsePairs("id-field", opts.IDFields)
	if err != nil {
		return err
	}
	for name := range idFields {
		if _, ok := inputs[name]; !ok {
			return eris.Errorf("--id-field %s: no input named %q", name, name)
		}
	}

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	loaded := make([]*model.Dataset, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Input.MaxConcurrency, 1))
	for i, name := range names {
		g.Go(func() error {
			ds, err := loader.Load(gctx, inputs[name], fetcher.LoadOptions{Name: name, IDField: idFields[name]})
			if err != nil {
				return eris.Wrapf(err, "input %s", name)
			}
			loaded[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, ds := range loaded {
		ec.SetDataset(ds.Name, ds)
	}
	return nil
}

// parsePairs is strategy.ParseVars for dataset flags, where every name
// needs a value and may appear once.
func parsePairs(flag string, pairs []string) (map[string]string, error) {
	out, err := strategy.ParseVars(pairs)
	if err != nil {
		return nil, eris.Wrapf(err, "--%s", flag)
	}
	if len(out) != len(pairs) {
		return nil, eris.Errorf("--%s: a dataset name is given twice", flag)
	}
	for k, v := range out {
		if v == "" {
			return nil, eris.Errorf("--%s %s: missing value", flag, k)
		}
	}
	return out, nil
}

// exportResults writes the selected match sets and datasets as CSV plus
// summary.json and provenance.json into dir.
func exportResults(dir string, ec *pipeline.Context, summary *pipeline.Summary, selected []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create output dir")
	}

	matchSets, datasets, err := exportTargets(ec, selected)
	if err != nil {
		return nil, err
	}
	var files []string
	write := func(name string, fn func(io.Writer) error) error {
		p := filepath.Join(dir, name)
		if err := fetcher.WriteFile(p, fn); err != nil {
			return err
		}
		files = append(files, p)
		return nil
	}

	for _, name := range matchSets {
		matches, err := ec.Matches(name)
		if err != nil {
			return files, err
		}
		if err := write(name+".csv", func(w io.Writer) error { return fetcher.WriteMatchesCSV(w, matches) }); err != nil {
			return files, err
		}
	}
	for _, name := range datasets {
		ds, err := ec.Dataset(name)
		if err != nil {
			return files, err
		}
		if err := write(name+".csv", func(w io.Writer) error { return fetcher.WriteDatasetCSV(w, ds) }); err != nil {
			return files, err
		}
	}
	if summary != nil {
		if err := write("summary.json", jsonWriter(summary)); err != nil {
			return files, err
		}
	}
	if err := write("provenance.json", jsonWriter(ec.Provenance())); err != nil {
		return files, err
	}
	return files, nil
}

// exportTargets splits the selection into match sets and datasets. With no
// selection every match set and every *_unmatched dataset is exported.
// A selected name that is neither is an error.
func exportTargets(ec *pipeline.Context, selected []string) (matchSets, datasets []string, err error) {
	sets := make(map[string]bool)
	for _, n := range ec.MatchSetNames() {
		sets[n] = true
	}
	if len(selected) == 0 {
		matchSets = ec.MatchSetNames()
		for _, n := range ec.DatasetNames() {
			if strings.HasSuffix(n, "_unmatched") {
				datasets = append(datasets, n)
			}
		}
		return matchSets, datasets, nil
	}
	for _, n := range selected {
		switch {
		case sets[n]:
			matchSets = append(matchSets, n)
		case ec.HasDataset(n):
			datasets = append(datasets, n)
		default:
			return nil, nil, eris.Errorf("export: no match set or dataset %q", n)
		}
	}
	return matchSets, datasets, nil
}

func jsonWriter(v any) func(io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// runResult derives the stored status and result of a finished execution.
func runResult(summary *pipeline.Summary, ec *pipeline.Context, execErr error) (store.RunStatus, *store.RunResult) {
	result := &store.RunResult{Stats: ec.Stats()}
	for _, name := range ec.MatchSetNames() {
		if m, err := ec.Matches(name); err == nil {
			result.Matches += len(m)
		}
	}
	if summary != nil {
		result.Steps = len(summary.Steps)
		result.Failed = len(summary.Failed())
		result.Completed = summary.Completed
		if data, err := json.Marshal(summary); err == nil {
			result.Summary = data
		}
	}

	status := store.RunStatusComplete
	if execErr != nil {
		result.Error = execErr.Error()
		status = store.RunStatusFailed
		if summary != nil && summary.Cancelled {
			status = store.RunStatusCancelled
		}
	}
	return status, result
}

// formatSummary writes a per-step table and the output files to w.
func formatSummary(w io.Writer, out *runOutcome) {
	s := out.Summary
	_, _ = fmt.Fprintf(w, "Run %s (strategy %s)\n", out.RunID, s.Strategy)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tSTEP\tACTION\tSTATUS\tDURATION\tMESSAGE")
	for _, st := range s.Steps {
		msg := st.Message
		if st.Error != "" {
			msg = st.Error
		}
		req := ""
		if !st.Required {
			req = " (optional)"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s%s\t%s\t%s\n",
			st.Index, st.Name, st.Action, st.Status, req, st.Duration.Round(time.Millisecond), msg)
	}
	_ = tw.Flush()

	state := "completed"
	switch {
	case s.Cancelled:
		state = "cancelled"
	case !s.Completed:
		state = "halted"
	}
	_, _ = fmt.Fprintf(w, "Strategy %s in %s\n", state, s.Duration.Round(time.Millisecond))
	for _, f := range out.Files {
		_, _ = fmt.Fprintf(w, "  wrote %s\n", f)
	}
}
