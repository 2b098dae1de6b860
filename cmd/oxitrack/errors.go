package main

import (
	"errors"
	"fmt"

	"github.com/oxitrack/oxitrack/export"
	"github.com/oxitrack/oxitrack/internal/transport"
	"github.com/oxitrack/oxitrack/oximeter"
)

// FormatUserError turns typed errors into actionable one-liners; anything
// unrecognized falls through unchanged.
func FormatUserError(err error) string {
	if errors.Is(err, oximeter.ErrDiscoveryTimeout) {
		return fmt.Sprintf("%s - make sure the device is powered on and in range, then retry", err)
	}

	if errors.Is(err, transport.ErrNotConnected) {
		return fmt.Sprintf("%s - connect to a device first", err)
	}

	var exportErr *export.Error
	if errors.As(err, &exportErr) {
		switch exportErr.Reason {
		case export.AlreadyExists:
			return fmt.Sprintf("%s - pick a different path, exports never overwrite", exportErr)
		case export.BadExtension:
			return fmt.Sprintf("%s - use a .csv or .txt destination", exportErr)
		}
		return exportErr.Error()
	}

	return err.Error()
}
