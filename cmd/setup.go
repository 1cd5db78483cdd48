package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/skyanki/internal/shared"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	dbConf := r.conf().Database
	r.logger.Info("initializing database", "driver", dbConf.Driver, "path", dbConf.Path)

	if err := r.openStore(); err != nil {
		return err
	}

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back last migration")
		if err := shared.RollbackMigration(r.db, r.driver()); err != nil {
			return err
		}
	}

	version, dirty, err := shared.MigrationVersion(r.db, r.driver())
	if err != nil {
		return err
	}
	if dirty {
		r.logger.Warn("database schema is dirty", "version", version)
	}

	r.logger.Infof("setup complete for database: %v", dbConf.DataSource())
	return r.writePlain("✓ Database ready (schema version %d)\n", version)
}

// SetupConfig writes the configuration template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Configuration written to %s\n", path)
	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Set skyeng.username, skyeng.password and skyeng.student_id (or SKYENG_* variables)\n")
	r.writePlain("2. Run 'skyanki setup database'\n")
	r.writePlain("3. Run 'skyanki sync run --dry-run' to preview the notes\n")
	return nil
}

func (r *Runner) driver() string {
	if d := r.conf().Database.Driver; d != "" {
		return d
	}
	return shared.DriverSQLite
}
