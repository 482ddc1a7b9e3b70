// clientsync runs reconciliation between the client database and WordPress
// users from the command line, with the same environment as the API server.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... CLIENT_ENCRYPTION_KEY=... go run ./cmd/clientsync mismatches
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var opts globalOptions
	rootCmd := &cobra.Command{
		Use:   "clientsync",
		Short: "Reconcile client records with WordPress users",
		Long: `clientsync lists mismatches between client records and their linked
WordPress users, and applies operator decisions: push a field, ignore a
mismatch, link a client to a user, or sync a whole pair.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().IntVar(&opts.operatorID, "operator-id", 0, "operator id recorded in the audit log")
	rootCmd.PersistentFlags().StringVar(&opts.operatorName, "operator-name", "", "operator name recorded in the audit log")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(mismatchesCmd(&opts))
	rootCmd.AddCommand(pushCmd(&opts))
	rootCmd.AddCommand(pushClientCmd(&opts))
	rootCmd.AddCommand(ignoreCmd(&opts, true))
	rootCmd.AddCommand(ignoreCmd(&opts, false))
	rootCmd.AddCommand(rulesCmd(&opts))
	rootCmd.AddCommand(linkCmd(&opts))
	rootCmd.AddCommand(syncPairCmd(&opts))
	rootCmd.AddCommand(auditCmd(&opts))
	rootCmd.AddCommand(staffCmd(&opts))
	rootCmd.AddCommand(migrateCmd(&opts))
	rootCmd.AddCommand(sessionCmd(&opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
