package cli

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

func DecodeCommand() *cobra.Command {
	var (
		encoding string
		file     string
	)
	cmd := &cobra.Command{
		Use:   "decode [data]",
		Short: "Decode Market or Position account bytes",
		Long:  `Decodes account bytes given as hex or base64, or read raw from --file. The account kind is detected from the discriminator.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readAccountBytes(args, encoding, file)
			if err != nil {
				return err
			}
			kind, err := accounts.Kind(data)
			if err != nil {
				return err
			}

			var rows [][]string
			switch kind {
			case "Market":
				m, err := accounts.DecodeMarket(data)
				if err != nil {
					return err
				}
				rows = marketRows(m)
			case "Position":
				p, err := accounts.DecodePosition(data)
				if err != nil {
					return err
				}
				rows = positionRows(p)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", kind, len(data))
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Field", "Value")
			for _, r := range rows {
				table.Append(r[0], r[1])
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", "hex", "argument encoding: hex or base64")
	cmd.Flags().StringVar(&file, "file", "", "read raw account bytes from a file")
	return cmd
}

func readAccountBytes(args []string, encoding, file string) ([]byte, error) {
	if file != "" {
		return os.ReadFile(file)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("pass the account data or --file")
	}
	in := strings.TrimSpace(args[0])
	switch encoding {
	case "hex":
		return hex.DecodeString(strings.TrimPrefix(in, "0x"))
	case "base64":
		return base64.StdEncoding.DecodeString(in)
	default:
		return nil, fmt.Errorf("unknown --encoding %q", encoding)
	}
}

func marketRows(m *accounts.Market) [][]string {
	return [][]string{
		{"title", m.Title},
		{"creator", m.Creator.String()},
		{"stake_mint", m.StakeMint.String()},
		{"vault", m.Vault.String()},
		{"fee_bps", fmt.Sprint(m.FeeBps)},
		{"end_ts", fmt.Sprint(m.EndTime)},
		{"resolve_deadline_ts", fmt.Sprint(m.ResolveDeadline)},
		{"staked_a", fmt.Sprint(m.StakedA)},
		{"staked_b", fmt.Sprint(m.StakedB)},
		{"status", m.Status.String()},
		{"outcome", m.Outcome.String()},
		{"creator_fee_withdrawn", fmt.Sprint(m.CreatorFeeWithdrawn)},
		{"bump", fmt.Sprint(m.Bump)},
		{"vault_bump", fmt.Sprint(m.VaultBump)},
	}
}

func positionRows(p *accounts.Position) [][]string {
	return [][]string{
		{"owner", p.Owner.String()},
		{"side", p.Side.String()},
		{"amount", fmt.Sprint(p.Amount)},
		{"claimed", fmt.Sprint(p.Claimed)},
		{"bump", fmt.Sprint(p.Bump)},
	}
}
