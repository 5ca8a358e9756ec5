package commands

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"heartx/internal/services/recovery"
)

func recoveryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Create or use a recovery code",
	}
	cmd.AddCommand(recoveryNewCmd(), recoveryUseCmd())
	return cmd
}

func recoveryNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a recovery code for the current password, replacing any previous one",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			// Prove the password first so the capsule never holds a wrong one.
			s, err := wire.Login(cmd.Context(), pw)
			if err != nil {
				return err
			}
			s.Close()

			code, err := recovery.GenerateCode()
			if err != nil {
				return err
			}
			if err := wire.Recovery.Register(cmd.Context(), code, pw); err != nil {
				return err
			}
			fmt.Printf("Recovery code (shown once): %s\n", code)
			return nil
		},
	}
}

func recoveryUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <code>",
		Short: "Recover the password with a recovery code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := wire.Worker.Recover(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Password: %s\n", pw)
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all relay and local state for the identity",
		Long: "Changing the password means starting over: this removes the sealed key, slots, " +
			"inbox, returns and matches on the relay, then wipes local state. Register again afterwards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset is irreversible; pass --yes to confirm")
			}
			if err := wire.Recovery.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Reset complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
