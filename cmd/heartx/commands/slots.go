package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"heartx/internal/app"
	"heartx/internal/domain"
)

func draftCmd() *cobra.Command {
	var (
		at    int
		note  string
		clear bool
	)
	cmd := &cobra.Command{
		Use:   "draft [target]",
		Short: "Place a target in a slot without sending it (or --clear a draft)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if clear {
					if at < 0 {
						return errors.New("--clear needs --slot")
					}
					if err := wire.Slots.ClearDraft(s.Board, at); err != nil {
						return err
					}
					fmt.Printf("Cleared slot %d\n", at)
					return nil
				}
				if len(args) != 1 {
					return errors.New("target required")
				}
				var (
					slot domain.Slot
					err  error
				)
				target := domain.Identity(args[0])
				if at >= 0 {
					slot, err = wire.Slots.SaveDraftAt(s.Board, at, target, note)
				} else {
					slot, err = wire.Slots.SaveDraft(s.Board, target, note)
				}
				if err != nil {
					return err
				}
				fmt.Printf("Drafted %s in slot %d\n", slot.Target, slot.Index)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&at, "slot", -1, "slot index (0-3)")
	cmd.Flags().StringVar(&note, "note", "", "note revealed to the target on a match")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the draft at --slot")
	return cmd
}

func commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Send every draft to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				set, err := wire.Slots.Commit(ctx, s.Keys, s.Board)
				if err != nil {
					return err
				}
				fmt.Printf("Committed %d slot(s) (version %d)\n", len(s.Board.Committed()), set.Version)
				return nil
			})
		},
	}
}

func withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <slot>",
		Short: "Remove a selection, freeing its slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrap(err, "slot index")
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if _, err := wire.Slots.Withdraw(ctx, s.Keys, s.Board, index); err != nil {
					return err
				}
				fmt.Printf("Withdrew slot %d\n", index)
				return nil
			})
		},
	}
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Show the four slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				for _, sl := range s.Board.Slots() {
					if !sl.Occupied() {
						fmt.Printf("%d  -\n", sl.Index)
						continue
					}
					line := fmt.Sprintf("%d  %-10s %s", sl.Index, sl.State, sl.Target)
					if sl.Aux != "" {
						line += fmt.Sprintf("  %q", sl.Aux)
					}
					fmt.Println(line)
				}
				return nil
			})
		},
	}
}
