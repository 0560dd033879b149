package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/server/handlers"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for the build, dependency and runtime details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !extended {
			_, err := fmt.Fprintf(out, "%s %s\n", config.AppName, versionInfo.Version)
			return err
		}
		return writeLine(out, versionTable(handlers.CurrentVersion()))
	},
}

func versionTable(v handlers.VersionResponse) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(v.Name + " " + v.Build.Version)
	t.AppendRows([]table.Row{
		{"Commit", v.Build.Commit},
		{"Built", v.Build.BuildDate},
		{"Go", v.Go},
		{"Platform", v.Platform},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Gofulmen", v.Gofulmen},
		{"Crucible", v.Crucible},
	})
	if v.Provider != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Provider", v.Provider.Name},
			{"Model", v.Provider.Model},
			{"Pools", strings.Join(v.Provider.Pools, ", ")},
		})
	}
	return t.Render()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show build, dependency and runtime details")
}
