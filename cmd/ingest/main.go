// Command ingest loads model grids, stations, domains and forecast borders
// from parameter files, then exits.
//
// Usage:
//
//	ingest grids [file]          register the grids of a parameter file (default GRID_PARAM_FILE)
//	ingest stations <file>       upload stations from a stations.ini.yaml file
//	ingest domains <file>        upload domains from a domains.ini.yaml file
//	ingest border <name> <file>  store a forecast border read from a shapefile
//	ingest export                rewrite every configuration artifact
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bbernstein/weathervis-go/internal/app"
	"github.com/bbernstein/weathervis-go/internal/config"
	"github.com/bbernstein/weathervis-go/internal/observability"
)

var errUsage = errors.New("usage: ingest [-env file] grids|stations|domains|border|export [args]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "dotenv file to load if present")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load %s: %v", *envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, observability.NewLogger(cfg), observability.NewMetrics())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return dispatch(ctx, a, fs.Args(), out)
}

func dispatch(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch {
	case cmd == "grids" && len(rest) <= 1:
		file := a.Config.GridParamFile
		if len(rest) == 1 {
			file = rest[0]
		}
		if file == "" {
			return fmt.Errorf("%w: no parameter file given and GRID_PARAM_FILE is empty", errUsage)
		}
		results, err := a.Loader.IngestAll(ctx, file)
		if err != nil {
			return err
		}
		for _, res := range results {
			fmt.Fprintf(out, "%s\t%s\t%s\t%d variables\n",
				res.Grid.Name, res.Grid.DateValidStart.UTC().Format("2006-01-02T15:04:05Z"), res.Outcome, res.Variables)
		}
		return nil

	case cmd == "stations" && len(rest) == 1:
		stats, err := a.Importer.UploadStations(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "stations: %d created, %d existing\n", stats.Created, stats.Existing)
		return nil

	case cmd == "domains" && len(rest) == 1:
		stats, err := a.Importer.UploadDomains(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "domains: %d created, %d existing\n", stats.Created, stats.Existing)
		return nil

	case cmd == "border" && len(rest) == 2:
		border, err := a.Borders.LoadShapefile(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "border %s: %d polygons\n", border.Name, len(border.Border))
		return nil

	case cmd == "export" && len(rest) == 0:
		if err := a.Exporter.ExportAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "configuration exported")
		return nil
	}
	return errUsage
}
