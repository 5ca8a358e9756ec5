package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"heartx/internal/app"
	"heartx/internal/services/recovery"
)

func registerCmd() *cobra.Command {
	var withRecovery bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create the identity and publish its password-sealed key",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword("New password: ")
			if err != nil {
				return err
			}
			if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
				again, err := readPassword("Repeat password: ")
				if err != nil {
					return err
				}
				if again != pw {
					return errors.New("passwords do not match")
				}
			}
			s, err := wire.Register(cmd.Context(), pw)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Printf("Registered %s\n", s.Keys.Identity())

			if !withRecovery {
				return nil
			}
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
	cmd.Flags().BoolVar(&withRecovery, "with-recovery", false, "also create a recovery code")
	return cmd
}

func loginCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login-check",
		Short: "Unlock the key to confirm the password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				fmt.Printf("Unlocked %s (%d committed)\n", s.Keys.Identity(), len(s.Board.Committed()))
				return nil
			})
		},
	}
}
