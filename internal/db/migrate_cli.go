package db

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// MigrateCommand runs the 'migrate' subcommand against the database at
// DBPath. Confirmation prompts read from In; everything else goes to Out.
type MigrateCommand struct {
	DBPath string
	In     io.Reader
	Out    io.Writer
}

// Run dispatches args[0] to the matching action.
func (c *MigrateCommand) Run(args []string) error {
	if len(args) < 1 {
		c.PrintHelp()
		return fmt.Errorf("migrate: missing action")
	}
	action := args[0]
	if action == "help" {
		c.PrintHelp()
		return nil
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return err
	}
	// Open without applying migrations; the action decides what to run.
	database, err := OpenDB(c.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		return c.up(database, migrationsFS)
	case "down":
		return c.down(database, migrationsFS)
	case "status":
		return c.status(database, migrationsFS)
	case "version":
		if len(args) < 2 {
			return fmt.Errorf("usage: mstid migrate version <version_number>")
		}
		return c.version(database, migrationsFS, args[1])
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: mstid migrate force <version_number>")
		}
		return c.force(database, migrationsFS, args[1])
	default:
		fmt.Fprintf(c.Out, "Unknown migrate action: %s\n\n", action)
		c.PrintHelp()
		return fmt.Errorf("migrate: unknown action %q", action)
	}
}

func (c *MigrateCommand) up(database *DB, migrationsFS fs.FS) error {
	migrateLogf("running migrations on %s", c.DBPath)
	if err := database.MigrateUp(migrationsFS); err != nil {
		return err
	}
	version, dirty, _ := database.MigrateVersion(migrationsFS)
	fmt.Fprintf(c.Out, "✓ All migrations applied. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func (c *MigrateCommand) down(database *DB, migrationsFS fs.FS) error {
	migrateLogf("rolling back one migration on %s", c.DBPath)
	if err := database.MigrateDown(migrationsFS); err != nil {
		return err
	}
	version, dirty, _ := database.MigrateVersion(migrationsFS)
	fmt.Fprintf(c.Out, "✓ Migration rolled back. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func (c *MigrateCommand) status(database *DB, migrationsFS fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.Out, "=== Migration Status ===")
	fmt.Fprintf(c.Out, "Current version: %d\n", version)
	fmt.Fprintf(c.Out, "Latest available: %d\n", latest)
	fmt.Fprintf(c.Out, "Dirty: %v\n", dirty)
	switch {
	case dirty:
		fmt.Fprintln(c.Out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(c.Out, "Inspect the database, then run: mstid migrate force <version>")
	case version < latest:
		fmt.Fprintf(c.Out, "\n⚠️  Database is %d version(s) behind. Run 'mstid migrate up' to update.\n", latest-version)
	default:
		fmt.Fprintln(c.Out, "\n✓ Database is up to date!")
	}
	return nil
}

func (c *MigrateCommand) version(database *DB, migrationsFS fs.FS, arg string) error {
	target, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid version number: %s", arg)
	}
	if err := database.MigrateTo(migrationsFS, uint(target)); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "✓ Migrated to version %d\n", target)
	return nil
}

func (c *MigrateCommand) force(database *DB, migrationsFS fs.FS, arg string) error {
	target, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid version number: %s", arg)
	}

	fmt.Fprintf(c.Out, "⚠️  WARNING: Forcing migration version to %d\n", target)
	fmt.Fprintln(c.Out, "This should only be used to recover from a dirty migration state.")
	fmt.Fprint(c.Out, "Continue? [y/N]: ")
	var response string
	if c.In != nil {
		response, _ = bufio.NewReader(c.In).ReadString('\n')
	}
	if r := strings.TrimSpace(response); r != "y" && r != "Y" {
		fmt.Fprintln(c.Out, "Aborted")
		return nil
	}

	if err := database.MigrateForce(migrationsFS, target); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "✓ Migration version forced to %d\n", target)
	return nil
}

// PrintHelp displays the help message for the migrate command.
func (c *MigrateCommand) PrintHelp() {
	fmt.Fprint(c.Out, `Database Migration Commands

Usage: mstid migrate [-db <path>] <command> [options]

Commands:
  up              Apply all pending migrations
  down            Rollback one migration
  status          Show current migration status and version
  version <N>     Migrate to specific version N
  force <N>       Force migration version to N (recovery only)
  help            Show this help message

Examples:
  mstid migrate up
  mstid migrate -db runs.db status
  mstid migrate version 1
`)
}
