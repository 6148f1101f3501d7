package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/iota-uz/entity-registry/modules/registry/infrastructure/persistence"
	"github.com/iota-uz/entity-registry/pkg/configuration"
)

type migrationStatusOutput struct {
	Version   int64      `json:"version"`
	Path      string     `json:"path"`
	State     string     `json:"state"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the registry schema",
	}
	cmd.AddCommand(newMigrateRunCmd("up", "Apply all pending migrations", func(cmd *cobra.Command, m *persistence.Migrator) error {
		return m.Up(cmd.Context())
	}))
	cmd.AddCommand(newMigrateRunCmd("down", "Roll back the latest migration", func(cmd *cobra.Command, m *persistence.Migrator) error {
		return m.Down(cmd.Context())
	}))
	cmd.AddCommand(newMigrateRunCmd("status", "Print migration state", func(cmd *cobra.Command, m *persistence.Migrator) error {
		statuses, err := m.Status(cmd.Context())
		if err != nil {
			return err
		}
		out := make([]migrationStatusOutput, 0, len(statuses))
		for _, s := range statuses {
			row := migrationStatusOutput{
				Version: s.Source.Version,
				Path:    s.Source.Path,
				State:   string(s.State),
			}
			if !s.AppliedAt.IsZero() {
				at := s.AppliedAt.UTC()
				row.AppliedAt = &at
			}
			out = append(out, row)
		}
		return writeJSON(out)
	}))
	return cmd
}

func newMigrateRunCmd(use, short string, run func(*cobra.Command, *persistence.Migrator) error) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			if dir == "" {
				dir = conf.MigrationsDir
			}
			pool, err := connectDB(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer pool.Close()

			m, err := persistence.NewMigrator(pool, dir, conf.Logger())
			if err != nil {
				return withCode(exitUsage, err)
			}
			defer func() { _ = m.Close() }()

			if err := run(cmd, m); err != nil {
				return withCode(exitDBWrite, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (default: embedded)")
	return cmd
}
