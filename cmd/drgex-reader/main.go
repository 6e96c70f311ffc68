// drgex-reader - display and analyze drgex sample files
// This program reads a saved capture and shows its header, statistics,
// an ASCII time plot and the spectrum with an optional notch applied.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"drgex/internal/adc"
	"drgex/internal/filter"
	"drgex/internal/pipeline"
	"drgex/internal/plot"
	"drgex/internal/samplefile"
	"drgex/internal/spectrum"
	"drgex/internal/version"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	showStats    bool
	showGraph    bool
	showSpectrum bool
	showVersion  bool
	outputFormat string
	graphWidth   int
	graphHeight  int
	graphSamples int
	peakCount    int
	fftBackend   string
	notchEnabled bool
	notchFreq    float64
	notchQuality float64
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "drgex-reader [file.csv]",
	Short: "Display contents of drgex sample files",
	Long: `drgex-reader displays the header and samples of a drgex sample file.
The first line of the file is the integer sample rate, every further line is
one 12-bit ADC reading.

Display modes:
  --stats      Show statistics of the (optionally filtered) samples
  --graph      Draw an ASCII graph of the signal over time
  --spectrum   List the strongest spectral peaks (--format table, json, csv)`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version.Get("drgex-reader"))
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("filename required")
		}
		return displayFile(args[0], cmd)
	},
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "show statistical analysis of samples")
	rootCmd.Flags().BoolVarP(&showGraph, "graph", "g", false, "generate ASCII graph of the signal over time")
	rootCmd.Flags().BoolVarP(&showSpectrum, "spectrum", "s", false, "show the strongest spectral peaks")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "spectrum output format (table, json, csv)")
	rootCmd.Flags().IntVar(&graphWidth, "graph-width", 80, "width of the ASCII graph in characters")
	rootCmd.Flags().IntVar(&graphHeight, "graph-height", 20, "height of the ASCII graph in lines")
	rootCmd.Flags().IntVar(&graphSamples, "graph-samples", 2000, "number of samples to include in graph")
	rootCmd.Flags().IntVarP(&peakCount, "peaks", "n", 10, "number of spectral peaks to list")
	rootCmd.Flags().StringVar(&fftBackend, "fft-backend", string(spectrum.BackendGonum), "FFT implementation (gonum, godsp)")
	rootCmd.Flags().BoolVar(&notchEnabled, "notch", false, "apply the notch filter before analysis")
	rootCmd.Flags().Float64Var(&notchFreq, "notch-freq", 50, "notch center frequency (Hz)")
	rootCmd.Flags().Float64Var(&notchQuality, "notch-quality", 30, "notch quality factor")
}

// displayFile reads and displays the contents of a sample file
func displayFile(filename string, cmd *cobra.Command) error {
	switch outputFormat {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unsupported format: %s (must be table, json or csv)", outputFormat)
	}

	fileInfo, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	} else if err != nil {
		return err
	}

	// Machine-readable output carries only the spectrum
	quiet := showSpectrum && outputFormat != "table"

	if !quiet {
		rate, count, err := samplefile.ReadHeader(filename)
		if err != nil {
			return fmt.Errorf("failed to read header: %w", err)
		}

		fmt.Printf("DRGEX SAMPLE FILE READER %s\n\n", version.Version)
		fmt.Printf("📁 File Information:\n")
		fmt.Printf("Name: %s\n", filepath.Base(filename))
		fmt.Printf("Size: %s (%d bytes)\n", humanize.Bytes(uint64(fileInfo.Size())), fileInfo.Size())
		fmt.Printf("Modified: %s (%s)\n\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"), humanize.Time(fileInfo.ModTime()))
		displaySampleInfo(count, rate)
	}

	if !showStats && !showGraph && !showSpectrum {
		return nil
	}

	samples, rate, err := samplefile.ReadFile(filename)
	if err != nil {
		return err
	}

	analyzer, err := spectrum.NewAnalyzer(fftBackend)
	if err != nil {
		return err
	}
	opts := pipeline.Options{Analyzer: analyzer, Peaks: peakCount}
	if notchEnabled {
		opts.Notch = &filter.Params{CenterHz: notchFreq, Quality: notchQuality}
	}

	report, err := pipeline.Process(samples, float64(rate), opts)
	if err != nil {
		return err
	}

	if showGraph {
		xs, ys := plot.Downsample(report.Time.Time, report.Time.Values, graphSamples)
		chart := plot.Chart{
			Title:  "📈 Signal Over Time:",
			XUnit:  "s",
			YLabel: "ADC code",
			Width:  graphWidth,
			Height: graphHeight,
		}
		if err := chart.Render(os.Stdout, xs, ys); err != nil {
			return err
		}
	}

	if showStats {
		displayStatistics(report)
	}

	if showSpectrum {
		return displaySpectrum(os.Stdout, report)
	}
	return nil
}

// displaySampleInfo shows what the header promises about the capture
func displaySampleInfo(count, rate int) {
	fmt.Printf("🔢 Sample Information:\n")
	fmt.Printf("Sample Count: %s\n", humanize.Comma(int64(count)))
	fmt.Printf("Sample Rate: %d Hz\n", rate)
	if rate > 0 {
		fmt.Printf("Duration: %.3f seconds\n", float64(count)/float64(rate))
		fmt.Printf("Frequency Resolution: %.4f Hz\n", float64(rate)/float64(max(count, 1)))
		fmt.Printf("Nyquist: %.1f Hz\n", float64(rate)/2)
	}
	fmt.Println()
}

// displayStatistics shows statistical analysis of the samples
func displayStatistics(report *pipeline.Report) {
	s := report.Stats
	fmt.Printf("📊 Sample Statistics")
	if report.Filtered {
		fmt.Printf(" (notch applied)")
	}
	fmt.Printf(":\n")
	fmt.Printf("Count: %d\n", s.Count)
	fmt.Printf("Mean: %.2f (%.4f V)\n", s.Mean, adc.ToVoltage(s.Mean))
	fmt.Printf("Std Dev: %.2f (%.4f V)\n", s.StdDev, adc.ToVoltage(s.StdDev))
	fmt.Printf("Min: %.0f  Max: %.0f  Span: %.0f\n", s.Min, s.Max, s.Max-s.Min)
	if p, ok := report.Spectrum.Peak(); ok {
		fmt.Printf("Dominant Frequency: %.3f Hz\n", p.Frequency)
	}
	fmt.Println()
}

type peakRecord struct {
	Rank      int     `json:"rank"`
	Frequency float64 `json:"frequency_hz"`
	Magnitude float64 `json:"magnitude"`
}

type spectrumRecord struct {
	SampleRate float64      `json:"sample_rate"`
	BinWidth   float64      `json:"bin_width_hz"`
	Bins       int          `json:"bins"`
	Filtered   bool         `json:"filtered"`
	Backend    string       `json:"backend"`
	Peaks      []peakRecord `json:"peaks"`
}

// displaySpectrum writes the strongest peaks in the selected format
func displaySpectrum(w io.Writer, report *pipeline.Report) error {
	res := report.Spectrum
	peaks := make([]peakRecord, len(report.Peaks))
	for i, p := range report.Peaks {
		peaks[i] = peakRecord{Rank: i + 1, Frequency: p.Frequency, Magnitude: p.Magnitude}
	}

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(spectrumRecord{
			SampleRate: res.SampleRate,
			BinWidth:   res.BinWidth,
			Bins:       res.Len(),
			Filtered:   report.Filtered,
			Backend:    fftBackend,
			Peaks:      peaks,
		})

	case "csv":
		cw := csv.NewWriter(w)
		cw.Write([]string{"rank", "frequency_hz", "magnitude"})
		for _, p := range peaks {
			cw.Write([]string{
				strconv.Itoa(p.Rank),
				strconv.FormatFloat(p.Frequency, 'f', 4, 64),
				strconv.FormatFloat(p.Magnitude, 'f', 6, 64),
			})
		}
		cw.Flush()
		return cw.Error()

	default:
		fmt.Fprintf(w, "🎵 Spectrum (%d bins, %.4f Hz per bin", res.Len(), res.BinWidth)
		if report.Filtered {
			fmt.Fprintf(w, ", notch applied")
		}
		fmt.Fprintf(w, "):\n")
		if len(peaks) == 0 {
			fmt.Fprintf(w, "No peaks found\n")
		}
		for _, p := range peaks {
			fmt.Fprintf(w, "%3d. %10.3f Hz  %14.4f\n", p.Rank, p.Frequency, p.Magnitude)
		}
		fmt.Fprintln(w)
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
