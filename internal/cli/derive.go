// Package cli reúne os comandos do betsctl, a ferramenta offline para endereços,
// bytes de conta e o calculador de pagamento.
package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

func DeriveCommand() *cobra.Command {
	var programID string

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive program addresses for markets, positions, vaults and token accounts",
	}
	cmd.PersistentFlags().StringVar(&programID, "program-id", accounts.DefaultProgramID.String(), "base58 program id")

	deriver := func() (accounts.Deriver, error) {
		id, err := accounts.ParsePubkey(programID)
		if err != nil {
			return accounts.Deriver{}, fmt.Errorf("--program-id: %w", err)
		}
		return accounts.NewDeriver(id), nil
	}

	var (
		creator, market, owner, mint string
		nonce                        uint64
	)

	marketCmd := &cobra.Command{
		Use:   "market",
		Short: "Market address for a creator and nonce, plus its vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := deriver()
			if err != nil {
				return err
			}
			c, err := flagKey("creator", creator)
			if err != nil {
				return err
			}
			addr, bump, err := d.Market(c, nonce)
			if err != nil {
				return err
			}
			vault, vaultBump, err := d.Vault(addr)
			if err != nil {
				return err
			}
			printAddresses(cmd, [][]any{
				{"market", addr.String(), bump},
				{"vault", vault.String(), vaultBump},
			})
			return nil
		},
	}
	marketCmd.Flags().StringVar(&creator, "creator", "", "creator public key")
	marketCmd.Flags().Uint64Var(&nonce, "nonce", 0, "creator market nonce")
	_ = marketCmd.MarkFlagRequired("creator")

	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Position address for a market and owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := deriver()
			if err != nil {
				return err
			}
			m, err := flagKey("market", market)
			if err != nil {
				return err
			}
			o, err := flagKey("owner", owner)
			if err != nil {
				return err
			}
			addr, bump, err := d.Position(m, o)
			if err != nil {
				return err
			}
			printAddresses(cmd, [][]any{{"position", addr.String(), bump}})
			return nil
		},
	}
	positionCmd.Flags().StringVar(&market, "market", "", "market address")
	positionCmd.Flags().StringVar(&owner, "owner", "", "position owner")
	_ = positionCmd.MarkFlagRequired("market")
	_ = positionCmd.MarkFlagRequired("owner")

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Token account address for an owner and mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := deriver()
			if err != nil {
				return err
			}
			o, err := flagKey("owner", owner)
			if err != nil {
				return err
			}
			mk, err := flagKey("mint", mint)
			if err != nil {
				return err
			}
			addr, bump, err := d.TokenAccount(o, mk)
			if err != nil {
				return err
			}
			printAddresses(cmd, [][]any{{"token", addr.String(), bump}})
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&owner, "owner", "", "token account owner")
	tokenCmd.Flags().StringVar(&mint, "mint", "", "stake mint")
	_ = tokenCmd.MarkFlagRequired("owner")
	_ = tokenCmd.MarkFlagRequired("mint")

	cmd.AddCommand(marketCmd, positionCmd, tokenCmd)
	return cmd
}

func flagKey(name, v string) (accounts.Pubkey, error) {
	pk, err := accounts.ParsePubkey(v)
	if err != nil {
		return pk, fmt.Errorf("--%s: %w", name, err)
	}
	return pk, nil
}

func printAddresses(cmd *cobra.Command, rows [][]any) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Kind", "Address", "Bump")
	for _, r := range rows {
		table.Append(r...)
	}
	table.Render()
}
