// Package testutil wires the shared test environment: key generation
// and trace-level logging that stays out of the way unless the run is
// verbose.
package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func init() {
	logrus.SetLevel(logrus.TraceLevel)

	if !isVerboseRun() {
		logrus.StandardLogger().Out = io.Discard
	}
}

func isVerboseRun() bool {
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.v") && !strings.HasSuffix(arg, "=false") {
			return true
		}
	}
	return false
}

// DisableLogging silences the standard logger for the remainder of a
// test, returning a func that restores the previous output.
func DisableLogging() (reset func()) {
	originalLogOutput := logrus.StandardLogger().Out
	logrus.StandardLogger().Out = io.Discard
	return func() {
		logrus.StandardLogger().Out = originalLogOutput
	}
}
