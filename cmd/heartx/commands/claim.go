package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"heartx/internal/app"
	"heartx/internal/domain"
	"heartx/internal/services/match"
)

func claimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim inbound hearts and check for matches once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				c, err := wire.Cycle(ctx, s)
				if err != nil {
					return err
				}
				printCycle(c)
				printTallies(s.Ledger.Tallies())
				return nil
			})
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Claim and check for matches on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				fmt.Printf("Watching as %s every %s (Ctrl-C to stop)\n", s.Keys.Identity(), wire.Config.Poll.Interval)
				err := wire.Poller(s, printCycle).Run(ctx)
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
}

func matchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matches",
		Short: "List matches recorded by the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				recs, err := wire.Match.ListMatches(ctx)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Println("No matches yet")
					return nil
				}
				for _, r := range recs {
					fmt.Printf("%s  %s\n", r.MatchedAt.Local().Format("2006-01-02 15:04"), r.Counterpart)
				}
				return nil
			})
		},
	}
}

func printCycle(c match.Cycle) {
	if n := len(c.Claimed.Ordinary) + len(c.Claimed.Late); n > 0 {
		fmt.Printf("Claimed %d heart(s)\n", n)
	}
	if len(c.Claimed.Late) > 0 {
		fmt.Printf("%d arrived after you committed; see `heartx late`\n", len(c.Claimed.Late))
	}
	for _, m := range c.Matches {
		if m.Aux != "" {
			fmt.Printf("Match: %s (%q)\n", m.Counterpart, m.Aux)
			continue
		}
		fmt.Printf("Match: %s\n", m.Counterpart)
	}
}

func printTallies(t map[domain.SenderTag]int) {
	if len(t) == 0 {
		return
	}
	tags := make([]string, 0, len(t))
	for tag := range t {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)
	for _, tag := range tags {
		label := tag
		if label == "" {
			label = "(untagged)"
		}
		fmt.Printf("  %s: %d\n", label, t[domain.SenderTag(tag)])
	}
}
