package main

import (
	"context"

	"github.com/aretw0/quarry/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive query-building dialogue",
	Long: `Starts a dialogue in the terminal. Sessions are persisted, so an interrupted
run can be resumed with --session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		var opts cli.RunOptions
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.NoStream, _ = cmd.Flags().GetBool("no-stream")
		opts.Debug, _ = cmd.Flags().GetBool("debug")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		return cli.RunSession(ctx, app, opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session ID to resume or create")
	runCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	runCmd.Flags().Bool("headless", false, "Run without banner, suggestions or styling")
	runCmd.Flags().Bool("fresh", false, "Discard the stored session before starting")
	runCmd.Flags().Bool("no-stream", false, "Print replies at once instead of token by token")

	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
