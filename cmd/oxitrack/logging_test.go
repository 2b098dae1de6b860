package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggingTestCmd(withVerbose bool) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	if withVerbose {
		cmd.Flags().Bool("verbose", false, "")
	}
	return cmd
}

func TestNewCommandLogger(t *testing.T) {
	t.Run("silent by default", func(t *testing.T) {
		logger, err := newCommandLogger(newLoggingTestCmd(true))
		require.NoError(t, err)
		assert.Equal(t, logrus.PanicLevel, logger.GetLevel())
	})

	t.Run("maps each log-level value", func(t *testing.T) {
		tests := []struct {
			name string
			want logrus.Level
		}{
			{"debug", logrus.DebugLevel},
			{"info", logrus.InfoLevel},
			{"warn", logrus.WarnLevel},
			{"error", logrus.ErrorLevel},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cmd := newLoggingTestCmd(true)
				require.NoError(t, cmd.Flags().Set("log-level", tt.name))

				logger, err := newCommandLogger(cmd)
				require.NoError(t, err)
				assert.Equal(t, tt.want, logger.GetLevel())
			})
		}
	})

	t.Run("rejects an unknown log-level", func(t *testing.T) {
		cmd := newLoggingTestCmd(true)
		require.NoError(t, cmd.Flags().Set("log-level", "loud"))

		_, err := newCommandLogger(cmd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid log level "loud"`)
	})

	t.Run("verbose enables debug", func(t *testing.T) {
		cmd := newLoggingTestCmd(true)
		require.NoError(t, cmd.Flags().Set("verbose", "true"))

		logger, err := newCommandLogger(cmd)
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	})

	t.Run("log-level wins over verbose", func(t *testing.T) {
		cmd := newLoggingTestCmd(true)
		require.NoError(t, cmd.Flags().Set("verbose", "true"))
		require.NoError(t, cmd.Flags().Set("log-level", "warn"))

		logger, err := newCommandLogger(cmd)
		require.NoError(t, err)
		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	})

	t.Run("a command without a verbose flag stays silent", func(t *testing.T) {
		logger, err := newCommandLogger(newLoggingTestCmd(false))
		require.NoError(t, err)
		assert.Equal(t, logrus.PanicLevel, logger.GetLevel())
	})
}
