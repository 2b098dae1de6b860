package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oxitrack/oxitrack/export"
	"github.com/oxitrack/oxitrack/internal/transport"
	"github.com/oxitrack/oxitrack/internal/transport/goble"
	"github.com/oxitrack/oxitrack/oximeter"
)

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a pulse-oximeter session and export it",
	Long: `Connect to a pulse oximeter by its advertised name, stream readings
until the duration elapses or Ctrl+C is pressed, and export the accumulated
table as a tab-delimited file.

Examples:
  # Record from the default BerryMed device until Ctrl+C
  oxitrack record

  # Record 60 seconds into a specific file
  oxitrack record --duration 60s --out session.csv

  # Record with a generated file name under ./Records
  oxitrack record --name "BerryMed" --prefix patient42 --verbose`,
	RunE: runRecord,
}

var (
	recordName        string
	recordScanTimeout time.Duration
	recordDuration    time.Duration
	recordOut         string
	recordFolder      string
	recordPrefix      string
	recordVerbose     bool
)

func init() {
	recordCmd.Flags().StringVarP(&recordName, "name", "n", "BerryMed", "Advertised device name to connect to")
	recordCmd.Flags().DurationVar(&recordScanTimeout, "scan-timeout", 15*time.Second, "Discovery timeout")
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 0, "Recording duration (0 = until disconnect or Ctrl+C)")
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Destination file (.csv or .txt); generated when omitted")
	recordCmd.Flags().StringVar(&recordFolder, "folder", "Records", "Destination folder for generated file names")
	recordCmd.Flags().StringVar(&recordPrefix, "prefix", "", "Prefix for generated file names")
	recordCmd.Flags().BoolVar(&recordVerbose, "verbose", false, "Print every distinct discovered device and per-sample traces")
}

func runRecord(cmd *cobra.Command, args []string) error {
	logger, err := newCommandLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	session, err := oximeter.NewSession(oximeter.Config{
		Target:         recordName,
		Verbose:        recordVerbose,
		Logger:         logger,
		ScannerFactory: goble.NewScanner,
		PeripheralFactory: func(l *logrus.Logger) transport.Peripheral {
			return goble.NewPeripheral(l)
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Connect(ctx, recordScanTimeout); err != nil {
		return err
	}
	defer session.Disconnect()

	_, _ = session.ReadIdentity()

	handle, err := session.Start(&oximeter.RecordOptions{Duration: recordDuration})
	if err != nil {
		return err
	}

	// Ctrl+C requests a cooperative stop; the loop observes it within one
	// poll cycle.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, stopping acquisition...")
		handle.Stop()
	}()

	run := handle.Wait()

	if run.Len() == 0 {
		fmt.Println("No valid samples recorded, nothing to export")
		return nil
	}

	path, err := export.Write(run.Table(), &export.Options{
		Path:   recordOut,
		Folder: recordFolder,
		Prefix: recordPrefix,
	}, logger)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("Recorded %d samples", run.Len())
	fmt.Printf(" -> %s\n", path)
	return nil
}
