package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/andaleebali/sent-2-analysis/internal/cache"
	"github.com/andaleebali/sent-2-analysis/internal/delivery"
	"github.com/andaleebali/sent-2-analysis/internal/exitcode"
	"github.com/andaleebali/sent-2-analysis/internal/index"
	"github.com/andaleebali/sent-2-analysis/internal/notification"
	"github.com/andaleebali/sent-2-analysis/internal/properties"
	"github.com/andaleebali/sent-2-analysis/output"
	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type notifier interface {
	SendDiscordErrorNotification(errorMessage string) error
	SendDiscordSuccessNotification(successMessage string) error
}

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: exitcode.ConfigError, err: err}
}

func printBanner(w io.Writer) {
	figure1 := figure.NewFigure("Sent2", "isometric1", true)
	figure2 := figure.NewFigure("Analysis", "isometric1", true)
	cyan := bannercolor.New(bannercolor.FgCyan)
	cyan.Fprintln(w, figure1.String())
	cyan.Fprintln(w, figure2.String())
	fmt.Fprintln(w)
}

// flagAliases maps the band names used by vegetation indices to the generic
// band flags.
func flagAliases(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "red-band":
		name = "band-a"
	case "nir-band":
		name = "band-b"
	}
	return pflag.NormalizedName(name)
}

func newNDICmd(cfg *properties.Config, logger *slog.Logger, notify notifier) *cobra.Command {
	req := delivery.Request{}

	cmd := &cobra.Command{
		Use:   "ndi",
		Short: "Compute a normalised difference index for every scene in a folder",
		Long: "Unpacks any .zip archives in the folder, finds each scene's two bands at the " +
			"requested resolution and writes (B - A) / (B + A) as a Float32 GeoTIFF.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.BandA == "" || req.BandB == "" || req.Resolution == "" {
				return configError(errors.New("band-a, band-b and resolution must not be empty"))
			}
			if req.Workers < 1 {
				return configError(fmt.Errorf("workers must be at least 1, got %d", req.Workers))
			}
			return runNDI(cmd.OutOrStdout(), cfg, logger, notify, req)
		},
	}

	flags := cmd.Flags()
	flags.SetNormalizeFunc(flagAliases)
	flags.StringVar(&req.Folder, "folder", filepath.Join(cfg.RootPath, "Inputs"), "folder holding .zip archives or .SAFE scenes")
	flags.StringVar(&req.BandA, "band-a", "B04", "band subtracted in the numerator (alias --red-band)")
	flags.StringVar(&req.BandB, "band-b", "B08", "band added in the numerator (alias --nir-band)")
	flags.StringVar(&req.Resolution, "resolution", "10m", "band resolution, e.g. 10m, 20m, 60m")
	flags.StringVar(&req.Extension, "extension", "jp2", "band file extension")
	flags.StringVar(&req.Output, "output", filepath.Join(cfg.RootPath, "Outputs"), "output directory, or a .tif path for a single scene")
	flags.StringVar(&req.ExtractRoot, "extract-root", cfg.ExtractRoot, "directory receiving unpacked archives")
	flags.IntVar(&req.Workers, "workers", cfg.Workers, "scenes processed concurrently")
	flags.BoolVar(&req.Visualise, "visualise", false, "render a PNG preview and histogram of each index")
	return cmd
}

func runNDI(w io.Writer, cfg *properties.Config, logger *slog.Logger, notify notifier, req delivery.Request) error {
	outDir := delivery.OutputDir(req.Output)
	pipeline := delivery.NewPipeline(logger,
		delivery.WithVisualizer(output.NewVisualizer(outDir, logger)),
		delivery.WithStatsCache(statsCache(cfg)),
	)

	batch, err := pipeline.Run(req)
	if err != nil {
		sendError(logger, notify, fmt.Sprintf("Sent2 Analysis\n\nError running index: %s", err.Error()))
		return &exitError{code: exitcode.SceneError, err: err}
	}
	if batch.ArchiveErr != nil {
		logger.Error("some archives could not be unpacked", "error", batch.ArchiveErr)
		bannercolor.New(bannercolor.FgRed).Fprintf(w, "%s\n", batch.ArchiveErr)
	}

	var lines []string
	for _, r := range batch.Scenes {
		if r.Err != nil {
			bannercolor.New(bannercolor.FgRed).Fprintf(w, "%s: %s\n", r.Scene.Name, r.Err)
			continue
		}
		bannercolor.New(bannercolor.FgGreen).Fprintf(w, "%s: %s (mean %.4f)\n", r.Scene.Name, r.Output, r.Stats.Mean)
		lines = append(lines, r.Output)
	}

	if batch.Failed() {
		errs := batch.Errors()
		err := errors.Join(errs...)
		sendError(logger, notify, fmt.Sprintf("Sent2 Analysis\n\n%d failures, %d of %d scenes written:\n%s", len(errs), len(lines), len(batch.Scenes), err.Error()))
		return &exitError{code: exitcode.SceneError, err: err}
	}
	if err := notify.SendDiscordSuccessNotification(fmt.Sprintf("Sent2 Analysis\n\nIndex written for %d scenes:\n%s", len(lines), strings.Join(lines, "\n"))); err != nil {
		logger.Error("failed to send notification", "error", err)
	}
	return nil
}

func sendError(logger *slog.Logger, notify notifier, message string) {
	if err := notify.SendDiscordErrorNotification(message); err != nil {
		logger.Error("failed to send notification", "error", err)
	}
}

func newStatsCmd(cfg *properties.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <raster>",
		Short: "Print summary statistics of band 1 of a raster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := delivery.RasterStats(statsCache(cfg), args[0])
			if err != nil {
				return &exitError{code: exitcode.SceneError, err: err}
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func printStats(w io.Writer, stats index.Stats) {
	fmt.Fprintf(w, "mean:   %.6f\n", stats.Mean)
	fmt.Fprintf(w, "min:    %.6f\n", stats.Min)
	fmt.Fprintf(w, "max:    %.6f\n", stats.Max)
	fmt.Fprintf(w, "std:    %.6f\n", stats.Std)
	fmt.Fprintf(w, "median: %.6f\n", stats.Median)
	fmt.Fprintf(w, "pixels: %d\n", stats.Count)
}

func statsCache(cfg *properties.Config) *cache.FileCache[index.Stats] {
	return cache.NewFileCache[index.Stats](filepath.Join(cfg.RootPath, "cache", "stats"))
}

func newRootCmd(cfg *properties.Config, logger *slog.Logger, notify notifier) *cobra.Command {
	root := &cobra.Command{
		Use:           "sent2",
		Short:         "Sentinel-2 band index tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newNDICmd(cfg, logger, notify), newStatsCmd(cfg))
	return root
}

// run executes the command line and returns the process exit code. A panic
// is reported like any other failure.
func run(args []string, stdout, stderr io.Writer, cfg *properties.Config, logger *slog.Logger, notify notifier) (code int) {
	defer func() {
		if r := recover(); r != nil {
			bannercolor.New(bannercolor.FgRed).Fprintf(stderr, "PANIC: %v\n", r)
			sendError(logger, notify, fmt.Sprintf("Sent2 Analysis panic:\n\n%v\n\nStack trace:\n%s", r, debug.Stack()))
			code = exitcode.SceneError
		}
	}()

	root := newRootCmd(cfg, logger, notify)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitcode.Success
	}
	bannercolor.New(bannercolor.FgRed).Fprintf(stderr, "Error: %s\n", err)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	// Unknown commands and bad flags.
	return exitcode.ConfigError
}

func loadEnv() {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			slog.Warn("no .env file loaded", "error", err)
		}
	}
}

func main() {
	loadEnv()
	printBanner(os.Stdout)

	cfg, err := properties.Load()
	if err != nil {
		bannercolor.New(bannercolor.FgRed).Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitcode.ConfigError)
	}
	logger := cfg.Logger()
	notify := notification.NewDiscord(cfg.DiscordErrorURL, cfg.DiscordSuccessURL)

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, cfg, logger, notify))
}
