package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/biomap-cli/internal/actions"
	"github.com/sells-group/biomap-cli/internal/pipeline"
)

var actionsVerbose bool

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the actions strategies can use",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := actions.NewRegistry(actions.Deps{})
		if err != nil {
			return err
		}
		return formatActions(cmd.OutOrStdout(), reg, actionsVerbose)
	},
}

func init() {
	actionsCmd.Flags().BoolVarP(&actionsVerbose, "verbose", "v", false, "show parameters")
	rootCmd.AddCommand(actionsCmd)
}

func formatActions(out io.Writer, reg *pipeline.Registry, verbose bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, name := range reg.Names() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", name, reg.Describe(name))
		if !verbose {
			continue
		}
		f, err := reg.Get(name)
		if err != nil {
			return err
		}
		for _, p := range f().Params() {
			flags := ""
			if p.Required {
				flags = " required"
			} else if p.Default != nil {
				flags = fmt.Sprintf(" default=%v", p.Default)
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s%s\t%s\n", p.Name, p.Kind, flags, p.Description)
		}
	}
	return w.Flush()
}
