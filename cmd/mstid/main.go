// Command mstid runs the MUSIC wavenumber analysis over one radar time
// window, prints the detected travelling ionospheric disturbances and
// optionally stores the run and renders the map.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/mstid/internal/api"
	"github.com/banshee-data/mstid/internal/config"
	"github.com/banshee-data/mstid/internal/db"
	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/pipeline"
	"github.com/banshee-data/mstid/internal/mstid/render"
	"github.com/banshee-data/mstid/internal/mstid/storage/sqlite"
	"github.com/banshee-data/mstid/internal/mstid/synth"
	"github.com/banshee-data/mstid/internal/version"
)

// Exit codes.
const (
	exitOK = iota
	exitFailure
	exitConfiguration
	exitDataQuality
	exitNumerical
)

type options struct {
	configPath    string
	inputPath     string
	synthetic     bool
	seed          int64
	dbPath        string
	migrationsDir string
	pngPath       string
	htmlPath      string
	decibels      bool
	dumpInput     string
	serveAddr     string
	quiet         bool
	showVersion   bool
	migrateArgs   []string // set when invoked as "mstid [flags] migrate ..."
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("mstid", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Path to a tuning JSON file (defaults are built in)")
	fs.StringVar(&o.inputPath, "input", "", "Path to a JSON cube file")
	fs.BoolVar(&o.synthetic, "synthetic", false, "Analyse a generated plane-wave scene instead of -input")
	fs.Int64Var(&o.seed, "seed", 1, "Noise seed for -synthetic")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to store the run in")
	fs.StringVar(&o.migrationsDir, "migrations", "", "Read migrations from this directory instead of the embedded set")
	fs.StringVar(&o.pngPath, "png", "", "Write the wavenumber map as PNG")
	fs.StringVar(&o.htmlPath, "html", "", "Write the wavenumber map as interactive HTML")
	fs.BoolVar(&o.decibels, "db-scale", false, "Render the map in decibels relative to its maximum")
	fs.StringVar(&o.dumpInput, "dump-input", "", "Write the input cube as JSON before analysing")
	fs.StringVar(&o.serveAddr, "serve", "", "Serve the runs stored in -db over HTTP on this address instead of analysing")
	fs.BoolVar(&o.quiet, "quiet", false, "Mute stage logging")
	fs.BoolVar(&o.showVersion, "version", false, "Print version information and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mstid [flags] (-input cube.json | -synthetic)\n       mstid -db path -serve :8080\n       mstid [-db path] migrate <command>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		if rest[0] != "migrate" {
			return nil, fmt.Errorf("unexpected argument %q", rest[0])
		}
		o.migrateArgs = append([]string{}, rest[1:]...)
	}
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "mstid: %v\n", err)
		return exitConfiguration
	}
	if o.showVersion {
		fmt.Fprintln(stdout, version.String())
		return exitOK
	}
	if o.quiet {
		monitoring.SetLogger(nil)
	}
	if o.migrationsDir != "" {
		db.MigrationsDir = o.migrationsDir
	}

	if o.migrateArgs != nil {
		path := o.dbPath
		if path == "" {
			path = "mstid.db"
		}
		cmd := &db.MigrateCommand{DBPath: path, In: stdin, Out: stdout}
		if err := cmd.Run(o.migrateArgs); err != nil {
			fmt.Fprintf(stderr, "mstid: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if o.serveAddr != "" {
		if err := serve(ctx, o); err != nil {
			fmt.Fprintf(stderr, "mstid: %v\n", err)
			return exitCode(err)
		}
		return exitOK
	}
	if err := analyse(ctx, o, stdout); err != nil {
		fmt.Fprintf(stderr, "mstid: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var e *mstid.Error
	if !errors.As(err, &e) {
		return exitFailure
	}
	switch e.Kind {
	case mstid.Configuration:
		return exitConfiguration
	case mstid.DataQuality:
		return exitDataQuality
	default:
		return exitNumerical
	}
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	t, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, mstid.Configf("config", "path", "%v", err)
	}
	return t, nil
}

func loadInput(o *options, tuning *config.TuningConfig) (*dataset.Snapshot, error) {
	switch {
	case o.synthetic && o.inputPath != "":
		return nil, mstid.Configf("cli", "input", "-input and -synthetic are mutually exclusive")
	case o.synthetic:
		sc := synth.DefaultConfig()
		sc.Seed = o.seed
		if tuning.Radar != nil {
			sc.Radar = *tuning.Radar
		}
		if tuning.ScatterModel != nil {
			sc.ScatterModel = *tuning.ScatterModel
		}
		return synth.Generate(sc)
	case o.inputPath != "":
		snap, err := readCubeFile(o.inputPath, tuning.GetScatterModel())
		if err != nil {
			var e *mstid.Error
			if errors.As(err, &e) {
				return nil, err
			}
			return nil, mstid.DataQualityf("input", o.inputPath, "%v", err)
		}
		return snap, nil
	default:
		return nil, mstid.Configf("cli", "input", "one of -input or -synthetic is required")
	}
}

func analyse(ctx context.Context, o *options, stdout io.Writer) error {
	tuning, err := loadTuning(o.configPath)
	if err != nil {
		return err
	}
	snap, err := loadInput(o, tuning)
	if err != nil {
		return err
	}
	if tuning.Radar != nil && snap.Meta.Radar == "" {
		snap.Meta.Radar = *tuning.Radar
	}
	if o.dumpInput != "" {
		if err := writeCubeFile(o.dumpInput, snap); err != nil {
			return err
		}
	}

	cfg := pipeline.ConfigFromTuning(tuning)
	res, runErr := pipeline.Analyze(snap, cfg)

	if o.dbPath != "" && res != nil {
		if err := storeRun(ctx, o.dbPath, res, cfg, runErr); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	printSummary(stdout, res)
	if err := renderMap(o, res, snap); err != nil {
		return err
	}
	return nil
}

func serve(ctx context.Context, o *options) error {
	if o.dbPath == "" {
		return mstid.Configf("cli", "db", "-serve needs -db")
	}
	database, err := db.NewDB(o.dbPath)
	if err != nil {
		return fmt.Errorf("open run database: %w", err)
	}
	defer database.Close()
	return api.NewServer(sqlite.NewRunStore(database.DB)).ListenAndServe(ctx, o.serveAddr)
}

func storeRun(ctx context.Context, path string, res *pipeline.Result, cfg *pipeline.Config, runErr error) error {
	database, err := db.NewDB(path)
	if err != nil {
		return fmt.Errorf("open run database: %w", err)
	}
	defer database.Close()

	store := sqlite.NewRunStore(database.DB)
	if runErr != nil {
		return store.FailRun(ctx, res, cfg, runErr)
	}
	return store.SaveRun(ctx, res, cfg)
}

func renderMap(o *options, res *pipeline.Result, snap *dataset.Snapshot) error {
	ro := render.Options{
		Title:    fmt.Sprintf("%s %s", snap.Meta.Radar, snap.Meta.WindowStart.Format("2006-01-02 15:04")),
		Decibels: o.decibels,
	}
	for _, out := range []struct {
		path  string
		write func(io.Writer) error
	}{
		{o.pngPath, func(w io.Writer) error { return render.WritePNG(w, res.Map, res.Signals, ro) }},
		{o.htmlPath, func(w io.Writer) error { return render.WriteHTML(w, res.Map, res.Signals, ro) }},
	} {
		if out.path == "" {
			continue
		}
		fh, err := os.Create(out.path)
		if err != nil {
			return fmt.Errorf("create %s: %w", out.path, err)
		}
		if err := out.write(fh); err != nil {
			fh.Close()
			return err
		}
		if err := fh.Close(); err != nil {
			return fmt.Errorf("close %s: %w", out.path, err)
		}
	}
	return nil
}
