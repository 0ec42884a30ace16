package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-tempo/algorithms/stats"
	"github.com/RyanBlaney/sonido-tempo/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tempo/batch"
	"github.com/RyanBlaney/sonido-tempo/config"
	"github.com/RyanBlaney/sonido-tempo/logging"
	"github.com/RyanBlaney/sonido-tempo/transcode"
)

const (
	appName = "sonido-tempo"

	outputText = "text"
	outputJSON = "json"

	maxPrecision = 6
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

type analyzeOptions struct {
	configPath string
	workers    int
	precision  int
	output     string
	verbose    bool
	fft        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Estimate the tempo of audio files",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.AddCommand(newAnalyzeCmd(stdout, stderr))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "%s %s\n", appName, version)
		},
	})

	return rootCmd
}

func newAnalyzeCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Estimate the tempo (BPM) of each file",
		Long: "Decodes each WAV, AIFF, MP3 or Ogg Vorbis file to mono and estimates its tempo.\n" +
			"Files are analyzed concurrently; results are printed in argument order.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args, stdout, stderr)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to a YAML config file (default: ./"+config.DefaultFileName+" if present)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0,
		"Number of files analyzed concurrently (default: from config, else NumCPU)")
	cmd.Flags().IntVarP(&opts.precision, "precision", "p", 0,
		"Decimal places in the reported BPM")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputText,
		"Output format: text or json")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show debug logging")
	cmd.Flags().BoolVar(&opts.fft, "fft", false,
		"Use FFT autocorrelation for the fallback path")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions, paths []string, stdout, stderr io.Writer) error {
	if opts.output != outputText && opts.output != outputJSON {
		return fmt.Errorf("unknown output format %q, want %s or %s", opts.output, outputText, outputJSON)
	}
	if opts.precision < 0 || opts.precision > maxPrecision {
		return fmt.Errorf("precision must be between 0 and %d, got %d", maxPrecision, opts.precision)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = opts.workers
	}
	if opts.fft {
		cfg.Analysis.Autocorrelation = stats.FrequencyDomain.String()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Logs go to stderr so stdout stays machine-readable
	logger := logging.NewDefaultLoggerWithWriters(stderr, stderr)
	logger.SetLevel(cfg.Level())
	if opts.verbose {
		logger.SetLevel(logging.DebugLevel)
	}
	logging.SetGlobalLogger(logger)

	estimator, err := temporal.NewTempoEstimationWithConfig(cfg.Analysis)
	if err != nil {
		return err
	}

	runner := batch.NewRunner(transcode.NewDecoder(&cfg.Decoder), estimator, cfg.Batch)
	runner.SetProgress(func(done, total int) {
		logger.Debug("progress", logging.Fields{"done": done, "total": total})
	})

	inputs := make([]batch.Input, len(paths))
	for i, p := range paths {
		inputs[i] = batch.Input{Path: p}
	}

	logger.Debug("starting analysis", logging.Fields{
		"files":           len(inputs),
		"workers":         runner.Workers(),
		"autocorrelation": cfg.Analysis.Autocorrelation,
	})

	results, runErr := runner.Run(cmd.Context(), inputs)

	switch opts.output {
	case outputJSON:
		err = writeJSON(stdout, results, opts.precision)
	default:
		err = writeText(stdout, results, opts.precision)
	}
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if runErr != nil {
		return runErr
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}

	return nil
}

type jsonResult struct {
	File         string   `json:"file"`
	BPM          *float64 `json:"bpm,omitempty"`
	Category     string   `json:"category,omitempty"`
	Method       string   `json:"method,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	UsedFallback bool     `json:"used_fallback,omitempty"`
	UsedDefault  bool     `json:"used_default,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []batch.Result, precision int) error {
	enc := json.NewEncoder(w)
	for _, res := range results {
		out := jsonResult{File: res.Path}
		if res.Err != nil {
			out.Error = res.Err.Error()
		} else {
			bpm := res.Tempo.Rounded(precision)
			confidence := temporal.RoundTo(res.Tempo.Confidence, 3)
			out.BPM = &bpm
			out.Confidence = &confidence
			out.Category = res.Tempo.Category()
			out.Method = string(res.Tempo.Method)
			out.UsedFallback = res.Tempo.UsedFallback
			out.UsedDefault = res.Tempo.UsedDefault
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

func writeText(w io.Writer, results []batch.Result, precision int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tBPM\tCATEGORY\tMETHOD\tCONFIDENCE")
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\terror: %v\n", res.Path, res.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.3f\n",
			res.Path,
			strconv.FormatFloat(res.Tempo.Rounded(precision), 'f', precision, 64),
			res.Tempo.Category(),
			res.Tempo.Method,
			res.Tempo.Confidence,
		)
	}
	return tw.Flush()
}
