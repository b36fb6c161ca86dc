// Command mkuser provisions an author account directly in the database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"quill/accounts"
	"quill/common"
	"quill/database"
)

func newRootCmd() *cobra.Command {
	var dbURL string

	cmd := &cobra.Command{
		Use:   "mkuser <username> <password>",
		Short: "Create an author account",
		Long: `mkuser creates a user that can log in and publish posts.

The database is taken from --db or, when absent, from DATABASE_URL
(a .env file in the working directory is read first). The schema is
migrated before the user is inserted.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbURL == "" {
				dbURL = os.Getenv("DATABASE_URL")
			}
			if dbURL == "" {
				return fmt.Errorf("no database: pass --db or set DATABASE_URL")
			}

			db, err := common.ConnectDb(dbURL)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.RunMigrations(db); err != nil {
				return err
			}

			user, err := accounts.NewService(db).Create(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: created user %q (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbURL, "db", "", "Database connection URL (defaults to DATABASE_URL)")
	return cmd
}

func main() {
	godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
