package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var respondersCmd = &cobra.Command{
	Use:   "responders",
	Short: "List the responders the classifier can route to",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := start()
		if err != nil {
			return err
		}
		defer a.close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		bold := color.New(color.Bold)
		descriptions := a.registry.Descriptions()
		for _, name := range a.registry.SortedNames() {
			fmt.Fprintf(w, "%s\t%s\n", bold.Sprint(name), descriptions[name])
		}
		return w.Flush()
	},
}
