package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "walletauth",
		Short:         "Wallet account proof authentication server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newServe(),
		newKeygen(),
		newSignProof(),
		newVerifyProof(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
