package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "registryctl",
		Short:         "Entity registry change request tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newPersonCmd())
	cmd.AddCommand(newAuthorityCmd())
	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newDecideCmd())
	cmd.AddCommand(newWithdrawCmd())
	cmd.AddCommand(newTransitionCmd())
	cmd.AddCommand(newResubmitCmd())
	cmd.AddCommand(newPendingCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newRelayCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
