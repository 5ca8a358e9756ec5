package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"heartx/internal/app"
)

var (
	password string
	wire     *app.Wire
	stopWire func()
)

// Execute runs the CLI with ctx as the root context.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "heartx",
		Short:         "Anonymous mutual-interest matching",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// help, completion and bare group commands need no identity
			if !cmd.Runnable() || cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
				return nil
			}
			cfg, err := app.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}
			wire, err = app.NewWire(cfg, os.Stderr)
			if err != nil {
				return err
			}
			stopWire = wire.Start(cmd.Context())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if stopWire != nil {
				stopWire()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("home", "", "config dir (default ~/.heartx)")
	pf.String("identity", "", "your identity as issued by the directory")
	pf.String("token", "", "relay credential")
	pf.String("relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	pf.String("log", "", "log level")
	pf.StringVarP(&password, "password", "p", "", "password (prompted when omitted)")

	root.AddCommand(
		registerCmd(),
		loginCheckCmd(),
		draftCmd(),
		commitCmd(),
		withdrawCmd(),
		slotsCmd(),
		claimCmd(),
		watchCmd(),
		matchesCmd(),
		lateCmd(),
		recoveryCmd(),
		resetCmd(),
	)
	return root.ExecuteContext(ctx)
}
