package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// logLevels maps --log-level flag values onto logrus levels. Anything else is
// rejected up front so a typo fails fast instead of silently logging at the
// wrong level.
var logLevels = map[string]logrus.Level{
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
}

// newCommandLogger builds the logger for one subcommand run. Diagnostic
// logging is opt-in: the default level is Panic so the advisory text on
// stdout stays the only thing a normal run prints. --log-level wins over
// --verbose (debug); scan has no --verbose flag, which reads as false.
func newCommandLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	level := logrus.PanicLevel

	if name, _ := cmd.Flags().GetString("log-level"); name != "" {
		l, ok := logLevels[name]
		if !ok {
			return nil, fmt.Errorf("invalid log level %q: must be one of [debug info warn error]", name)
		}
		level = l
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
