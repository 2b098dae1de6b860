package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/spf13/cobra"

	"github.com/oxitrack/oxitrack/internal/transport"
	"github.com/oxitrack/oxitrack/internal/transport/goble"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Useful for finding the advertised name of your pulse oximeter before
running 'oxitrack record'.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
}

// discoveredDevice is one row of the scan listing.
type discoveredDevice struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	RSSI    int    `json:"rssi"`
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format %q: must be one of [table json]", scanFormat)
	}

	logger, err := newCommandLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	scanner, err := goble.NewScanner()
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	logger.WithField("duration", scanDuration).Info("Starting BLE scan")

	ctx, cancel := context.WithTimeout(context.Background(), scanDuration)
	defer cancel()

	// Listen for Ctrl+C to cancel
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	progress := NewCountdownPrinter("Scanning for BLE devices", scanDuration)
	progress.Start()
	defer progress.Stop()

	devices := hashmap.New[string, discoveredDevice]()
	err = scanner.Scan(ctx, false, func(adv transport.Advertisement) {
		name := strings.Trim(adv.LocalName(), "\x00")
		devices.Set(adv.Addr(), discoveredDevice{
			Name:    name,
			Address: adv.Addr(),
			RSSI:    adv.RSSI(),
		})
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", err)
	}

	progress.Stop()

	devList := make([]discoveredDevice, 0, devices.Len())
	devices.Range(func(_ string, d discoveredDevice) bool {
		devList = append(devList, d)
		return true
	})
	sort.Slice(devList, func(i, j int) bool { return devList[i].Name < devList[j].Name })

	if scanFormat == "json" {
		return displayDevicesJSON(os.Stdout, devList)
	}
	return displayDevicesTable(os.Stdout, devList)
}

func displayDevicesTable(out io.Writer, devices []discoveredDevice) error {
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = d.Address
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\n", name, d.Address, d.RSSI)
	}
	return w.Flush()
}

func displayDevicesJSON(out io.Writer, devices []discoveredDevice) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(devices)
}
