package cli

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

func PayoutCommand() *cobra.Command {
	var (
		feeBps           uint16
		stakedA, stakedB uint64
		outcome, side    string
		amount           uint64
	)
	cmd := &cobra.Command{
		Use:   "payout",
		Short: "Run the settlement calculator for a pool and a position",
		Long:  `Computes pool, fee, distributable and the payout of one position. --outcome takes A, B or cancel.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := &accounts.Market{FeeBps: feeBps, StakedA: stakedA, StakedB: stakedB}
			switch strings.ToLower(outcome) {
			case "cancel", "cancelled":
				m.Status = accounts.StatusCancelled
			default:
				s, err := accounts.ParseSide(outcome)
				if err != nil {
					return fmt.Errorf("--outcome: %w", err)
				}
				m.Status = accounts.StatusResolved
				m.Outcome = accounts.SomeOutcome(s)
			}
			s, err := accounts.ParseSide(side)
			if err != nil {
				return fmt.Errorf("--side: %w", err)
			}

			pool, err := engine.Fees(m)
			if err != nil {
				return err
			}
			payout, err := engine.Payout(m, &accounts.Position{Side: s, Amount: amount})
			if err != nil {
				return err
			}
			odds, err := engine.PreviewOdds(m)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Total", "Fee", "Distributable", "Odds A", "Odds B", "Payout")
			table.Append(pool.Total, pool.Fee, pool.Distributable, odds.A.String(), odds.B.String(), payout)
			table.Render()
			return nil
		},
	}
	cmd.Flags().Uint16Var(&feeBps, "fee-bps", 0, "creator fee in basis points")
	cmd.Flags().Uint64Var(&stakedA, "staked-a", 0, "total staked on A")
	cmd.Flags().Uint64Var(&stakedB, "staked-b", 0, "total staked on B")
	cmd.Flags().StringVar(&outcome, "outcome", "A", "A, B or cancel")
	cmd.Flags().StringVar(&side, "side", "A", "position side")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "position amount")
	return cmd
}
