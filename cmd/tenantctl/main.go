package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	os.Exit(execute())
}

func execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Tenant directory administration",
		Long:          "Administrative operations on the tenant directory: create, list, route and retire tenants.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newCreateCmd(),
		newListCmd(),
		newAddDomainCmd(),
		newRemoveDomainCmd(),
		newActivateCmd(),
		newDeactivateCmd(),
		newDeleteCmd(),
		newProvisionCmd(),
		newMigrateAllCmd(),
	)
	return rootCmd
}
