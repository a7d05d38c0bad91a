// Package cliutil holds the small bits of cobra/logrus plumbing shared
// by the observer, advertiser, and ctl commands.
package cliutil

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ConfigureLogger builds a logrus.Logger from the command's persistent
// --log-level flag (debug, info, warn, error).
func ConfigureLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
