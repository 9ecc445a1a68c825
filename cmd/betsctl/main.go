package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radieske/parimutuel-settlement/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:           "betsctl",
	Short:         "Offline tools for the parimutuel settlement engine",
	Long:          `betsctl derives program addresses, decodes stored account bytes and runs the payout calculator without a database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(cli.DeriveCommand())
	rootCmd.AddCommand(cli.DecodeCommand())
	rootCmd.AddCommand(cli.PayoutCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
