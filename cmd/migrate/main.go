// Command migrate manages the Postgres schema.
//
//	migrate up | down | status | version
//	migrate to <YYYYMMDDHHMMSS>
//	migrate create <name>
//	migrate validate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/angkor-storefront/internal/app"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/migrate"
)

const serviceName = "migrate"

var errUsage = errors.New("usage: migrate [-dir path] up|down|status|version|to <version>|create <name>|validate")

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set (create defaults to "+migrate.SourceDir+")")
	flag.Parse()

	if err := run(context.Background(), *dir, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	// Offline commands work on files only.
	switch cmd {
	case "create":
		if len(rest) != 1 {
			return errUsage
		}
		if dir == "" {
			dir = migrate.SourceDir
		}
		path, err := migrate.Create(dir, rest[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "created", path)
		return nil
	case "validate":
		if err := migrate.Validate(source(dir)); err != nil {
			return fmt.Errorf("invalid migrations: %w", err)
		}
		fmt.Fprintln(out, "migrations ok")
		return nil
	}

	cfg, logg, err := app.Boot(ctx, serviceName)
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer app.CloseLogged(ctx, logg, "database", client.Close)
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	m, err := migrate.New(sqlDB, source(dir), logg)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "to":
		if len(rest) != 1 {
			return errUsage
		}
		target, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("version %q is not YYYYMMDDHHMMSS: %w", rest[0], err)
		}
		return m.To(ctx, target)
	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
		return nil
	case "status":
		status, err := m.Status(ctx)
		if err != nil {
			return err
		}
		return printStatus(out, status)
	}
	return errUsage
}

func source(dir string) fs.FS {
	if dir == "" {
		return migrate.Embedded()
	}
	return os.DirFS(dir)
}

func printStatus(out io.Writer, status []*goose.MigrationStatus) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range status {
		applied := "-"
		if s.State == goose.StateApplied {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return tw.Flush()
}
