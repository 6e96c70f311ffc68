package main

import (
	"fmt"
	"os"

	"drgex/internal/journal"
	"drgex/internal/serialport"
	"drgex/internal/version"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyLimit int

// portsCmd lists the serial ports a sensor may be attached to
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serialport.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p)
			if verbose && p.IsUSB {
				fmt.Printf("    USB %s:%s serial %s\n", p.VID, p.PID, p.SerialNumber)
			}
		}
		return nil
	},
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

// historyCmd shows recorded captures
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent captures from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Journal.Path); os.IsNotExist(err) {
			fmt.Printf("No journal at %s\n", cfg.Journal.Path)
			return nil
		}

		store := journal.Open(cfg.Journal.Path)
		defer store.Close()

		entries, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No captures recorded")
			return nil
		}

		fmt.Printf("%-5s %-20s %-16s %8s %8s %6s %6s  %s\n",
			"ID", "STARTED", "PORT", "SAMPLES", "RATE", "ERRORS", "OK", "OUTPUT")
		for _, e := range entries {
			ok := "yes"
			if !e.Complete {
				ok = "no"
			}
			fmt.Printf("%-5d %-20s %-16s %8s %8d %6d %6s  %s\n",
				e.ID, humanize.Time(e.StartedAt), e.Port, humanize.Comma(int64(e.Samples)),
				e.Rate, e.Errors, ok, e.Output)
		}
		return nil
	},
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get("drgex"))
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of captures to show (0 for all)")
}
