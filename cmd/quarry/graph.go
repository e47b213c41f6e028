package main

import (
	"fmt"

	"github.com/aretw0/quarry/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the dialogue state machine as a Mermaid flowchart",
	Long: `Prints the phases and form overlays as a Mermaid flowchart.
With --session, the phases the session visited and its current state are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var overlay *graph.SessionOverlay

		if id, _ := cmd.Flags().GetString("session"); id != "" {
			app, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := app.Store.Load(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", id, err)
			}
			overlay = graph.OverlayOf(s)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight the path of this session")
}
