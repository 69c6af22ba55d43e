package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/config"
	"github.com/zulandar/drydock/internal/db"
)

func newDBCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd(configPath))
	cmd.AddCommand(newDBSeedCmd(configPath))
	return cmd
}

func newDBInitCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the Drydock database",
		Long:  "Migrates all tables and seeds the capacity policies from the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, *configPath)
		},
	}
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedCapacity(gormDB, cfg.Capacity); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d capacity rules\n", len(cfg.Capacity.Rules)+1)

	fmt.Fprintln(out, "\nDrydock database initialized successfully.")
	return nil
}

func newDBSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <directory.yaml>",
		Short: "Load users, equipment, materials, leaves and skills",
		Long:  "Upserts the directory file into the database. Seeded skills are stored as verified.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(a *app) error {
				dir, err := db.LoadDirectory(args[0])
				if err != nil {
					return err
				}
				if err := db.SeedDirectory(a.svc.DB, dir); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users, %d equipment, %d materials, %d leaves, %d skills\n",
					len(dir.Users), len(dir.Equipment), len(dir.Materials), len(dir.Leaves), len(dir.Skills))
				return nil
			})
		},
	}
}
