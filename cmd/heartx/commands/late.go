package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"heartx/internal/app"
	"heartx/internal/domain"
)

func lateCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "late",
		Short: "List hearts that arrived after you committed",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				items []domain.LateItem
				err   error
			)
			if all {
				items, err = wire.Late.Items()
			} else {
				items, err = wire.Late.Pending()
			}
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("Nothing to review")
				return nil
			}
			for _, it := range items {
				fmt.Printf("%s  %-9s %s  %s\n", it.ID, it.State, it.ArrivedAt.Local().Format("2006-01-02 15:04"), it.SenderTag)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include decided items")
	cmd.AddCommand(lateAcceptCmd(), lateDeclineCmd())
	return cmd
}

func lateAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <id>",
		Short: "Send a return for a late heart so it can match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if _, err := wire.Late.Accept(ctx, s.Board, args[0]); err != nil {
					return err
				}
				fmt.Printf("Accepted %s\n", args[0])
				return nil
			})
		},
	}
}

func lateDeclineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decline <id>",
		Short: "Never respond to a late heart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := wire.Late.Decline(args[0]); err != nil {
				return err
			}
			fmt.Printf("Declined %s\n", args[0])
			return nil
		},
	}
}
