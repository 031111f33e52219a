package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/landscape-rescale/internal/repository/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the results store schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(s *store.Store) error {
					if err := s.MigrateUp(); err != nil {
						return err
					}
					return printVersion(cmd, s)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(s *store.Store) error {
					return s.MigrateDown()
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(s *store.Store) error {
					return printVersion(cmd, s)
				})
			},
		},
	)

	return cmd
}

// withStore открывает каталог без автомиграции
func (a *app) withStore(fn func(s *store.Store) error) error {
	s, err := store.Open(a.cfg.Store.Driver, a.cfg.GetStoreDSN(), a.log)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}

func printVersion(cmd *cobra.Command, s *store.Store) error {
	version, dirty, err := s.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%v)\n", version, dirty)
	return nil
}
