// drgex - serial ADC vibration capture and spectral analysis
// This program reads 12-bit samples from a sensor on a serial port for a
// fixed error-free window, saves them and reports their spectrum.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"drgex/internal/collector"
	"drgex/internal/config"
	"drgex/internal/filter"
	"drgex/internal/journal"
	"drgex/internal/logging"
	"drgex/internal/pipeline"
	"drgex/internal/plot"
	"drgex/internal/samplefile"
	"drgex/internal/serialport"
	"drgex/internal/spectrum"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Command line flag variables
var (
	cfgFile   string // Configuration file path
	verbose   bool   // Enable debug logging
	showGraph bool   // Draw the captured signal and its spectrum
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "drgex",
	Short: "Serial ADC vibration capture and spectral analysis",
	Long: `drgex captures 12-bit ADC samples from a sensor on a serial port for a
fixed, error-free window. Any out-of-range reading discards the buffer and
restarts the window. The capture is saved as a sample file and its spectrum is
reported, optionally after removing one frequency with a notch filter.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAcquisition(ctx)
	},
}

// init initializes the CLI flags and configuration
func init() {
	cobra.OnInitialize(initConfig)
	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./drgex.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	flags := rootCmd.Flags()
	flags.StringP("port", "p", defaults.Serial.Port, "serial port of the sensor")
	flags.Int("baud", defaults.Serial.BaudRate, "serial line speed")
	flags.DurationP("duration", "d", defaults.Acquisition.Duration, "error-free capture window")
	flags.StringP("output", "o", defaults.Output.Path, "sample file, or directory for numbered files")
	flags.Bool("notch", defaults.Filter.Enabled, "apply the notch filter before analysis")
	flags.Float64("notch-freq", defaults.Filter.CenterHz, "notch center frequency (Hz)")
	flags.Float64("notch-quality", defaults.Filter.Quality, "notch quality factor")
	flags.String("fft-backend", defaults.Analysis.FFTBackend, "FFT implementation (gonum, godsp)")
	flags.Int("peaks", defaults.Analysis.Peaks, "number of spectral peaks to report")
	flags.Bool("journal", defaults.Journal.Enabled, "record the capture in the history database")
	flags.BoolVarP(&showGraph, "graph", "g", false, "draw ASCII charts of the signal and spectrum")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("serial.port", flags.Lookup("port"))
	viper.BindPFlag("serial.baud_rate", flags.Lookup("baud"))
	viper.BindPFlag("acquisition.duration", flags.Lookup("duration"))
	viper.BindPFlag("output.path", flags.Lookup("output"))
	viper.BindPFlag("filter.enabled", flags.Lookup("notch"))
	viper.BindPFlag("filter.center_hz", flags.Lookup("notch-freq"))
	viper.BindPFlag("filter.quality", flags.Lookup("notch-quality"))
	viper.BindPFlag("analysis.fft_backend", flags.Lookup("fft-backend"))
	viper.BindPFlag("analysis.peaks", flags.Lookup("peaks"))
	viper.BindPFlag("journal.enabled", flags.Lookup("journal"))

	registerDefaults(defaults)

	rootCmd.AddCommand(portsCmd, configCmd, historyCmd, versionCmd)
}

// registerDefaults makes every key known to viper so environment variables
// apply to settings without a flag.
func registerDefaults(d *config.Config) {
	viper.SetDefault("serial.read_timeout", d.Serial.ReadTimeout)
	viper.SetDefault("acquisition.reopen_delay", d.Acquisition.ReopenDelay)
	viper.SetDefault("acquisition.max_session_factor", d.Acquisition.MaxSessionFactor)
	viper.SetDefault("output.file_prefix", d.Output.FilePrefix)
	viper.SetDefault("journal.path", d.Journal.Path)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.file", d.Logging.File)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("drgex")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// DRGEX_SERIAL_PORT overrides serial.port and so on
	viper.SetEnvPrefix("drgex")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config file %s: %v\n", cfgFile, err)
	}
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runAcquisition is the main application logic
func runAcquisition(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	analyzer, err := spectrum.NewAnalyzer(cfg.Analysis.FFTBackend)
	if err != nil {
		return err
	}

	fmt.Printf("drgex starting...\n")
	fmt.Printf("Port: %s (%d baud)\n", cfg.Serial.Port, cfg.Serial.BaudRate)
	fmt.Printf("Duration: %v\n", cfg.Acquisition.Duration)
	if cfg.Filter.Enabled {
		fmt.Printf("Notch: %.2f Hz, Q=%.1f\n", cfg.Filter.CenterHz, cfg.Filter.Quality)
	}
	fmt.Println()

	c := collector.NewCollector(cfg.Acquisition, serialport.NewOpener(cfg.Serial), logger)
	capture, err := c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Printf("\nReceived interrupt signal, capture discarded.\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("acquisition failed: %w", err)
	}

	if !capture.Complete {
		fmt.Printf("⚠️  No error-free %v window within the session limit (%d out-of-range readings)\n",
			capture.Duration, capture.ErrorCount)
	}

	output, err := exportCapture(cfg.Output, capture, logger)
	if err != nil {
		return err
	}

	if len(capture.Samples) > 0 {
		opts := pipeline.Options{Analyzer: analyzer, Peaks: cfg.Analysis.Peaks}
		if cfg.Filter.Enabled {
			opts.Notch = &filter.Params{CenterHz: cfg.Filter.CenterHz, Quality: cfg.Filter.Quality}
		}
		report, err := pipeline.ProcessCapture(capture, opts)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		printReport(capture, report)
		if showGraph {
			if err := drawReport(report); err != nil {
				return err
			}
		}
	}

	if cfg.Journal.Enabled {
		store := journal.Open(cfg.Journal.Path)
		defer store.Close()
		id, err := store.Record(context.WithoutCancel(ctx), journal.EntryFromCapture(capture, output))
		if err != nil {
			return fmt.Errorf("failed to record capture: %w", err)
		}
		logger.Debug("Capture recorded", zap.Int64("id", id), zap.String("journal", cfg.Journal.Path))
	}

	return nil
}

// exportCapture saves the capture when an output path is configured and
// returns the written file name.
func exportCapture(cfg config.OutputConfig, capture *collector.Capture, logger *zap.Logger) (string, error) {
	if cfg.Path == "" {
		return "", nil
	}
	rate := capture.DisplayRate()
	if len(capture.Samples) == 0 || rate <= 0 {
		logger.Warn("Nothing to export", zap.Int("samples", len(capture.Samples)), zap.Int("rate", rate))
		return "", nil
	}

	path, err := samplefile.ResolvePath(cfg.Path, cfg.FilePrefix)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path: %w", err)
	}
	if err := samplefile.WriteFile(path, capture.Samples, rate); err != nil {
		return "", fmt.Errorf("failed to export samples: %w", err)
	}
	fmt.Printf("💾 Saved %d samples to %s\n", len(capture.Samples), path)
	return path, nil
}

func printReport(capture *collector.Capture, report *pipeline.Report) {
	fmt.Printf("\n📊 Capture:\n")
	fmt.Printf("Samples: %d\n", report.Stats.Count)
	fmt.Printf("Rate: %d Hz\n", report.Stats.DisplayRate)
	fmt.Printf("Mean: %.2f\n", report.Stats.Mean)
	fmt.Printf("Errors: %d\n", capture.ErrorCount)
	fmt.Printf("Window start: %s\n", capture.StartedAt.Format(time.RFC3339))

	if len(report.Peaks) == 0 {
		return
	}
	label := "Spectrum"
	if report.Filtered {
		label = "Spectrum (notch applied)"
	}
	fmt.Printf("\n🎵 %s:\n", label)
	for i, p := range report.Peaks {
		fmt.Printf("%2d. %10.3f Hz  magnitude %.4f\n", i+1, p.Frequency, p.Magnitude)
	}
}

func drawReport(report *pipeline.Report) error {
	fmt.Println()
	xs, ys := plot.Downsample(report.Time.Time, report.Time.Values, 2000)
	timeChart := plot.Chart{Title: "📈 Signal Over Time", XUnit: "s", YLabel: "ADC code", Width: 80, Height: 16}
	if err := timeChart.Render(os.Stdout, xs, ys); err != nil {
		return err
	}
	specChart := plot.Chart{Title: "🎵 Magnitude Spectrum", XUnit: "Hz", YLabel: "Magnitude", Width: 80, Height: 16}
	return specChart.Render(os.Stdout, report.Spectrum.Frequencies, report.Spectrum.Magnitudes)
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
