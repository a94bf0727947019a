// Package logging manages the process-wide default logger, used whenever a Config
// leaves Loggers unset.
package logging

import (
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// GlobalLoggers is the default logger set used by a Client constructed with a zero
// Config.Loggers. Output is filtered by SetMinLevel/InitLoggingWithLevel rather than
// by any per-environment setting, since this module has no concept of environments.
var GlobalLoggers ldlog.Loggers

var initializedWithSpecificWriters bool

var (
	debugHandle   io.Writer = ioutil.Discard
	infoHandle    io.Writer = os.Stdout
	warningHandle io.Writer = os.Stdout
	errorHandle   io.Writer = os.Stderr
)

func init() {
	GlobalLoggers = MakeLoggers("go-flagcore")
}

// InitLogging sets the destination streams for each logging level.
func InitLogging(debug, info, warning, errorW io.Writer) {
	debugHandle, infoHandle, warningHandle, errorHandle = debug, info, warning, errorW
	initializedWithSpecificWriters = true
	GlobalLoggers = MakeLoggers("go-flagcore")
}

// MakeLoggers returns a new ldlog.Loggers using the currently configured writers,
// with an optional prefix.
func MakeLoggers(prefix string) ldlog.Loggers {
	loggers := ldlog.Loggers{}
	loggers.SetBaseLoggerForLevel(ldlog.Debug, log.New(debugHandle, "", log.Ldate|log.Ltime|log.Lmicroseconds))
	loggers.SetBaseLoggerForLevel(ldlog.Info, log.New(infoHandle, "", log.Ldate|log.Ltime|log.Lmicroseconds))
	loggers.SetBaseLoggerForLevel(ldlog.Warn, log.New(warningHandle, "", log.Ldate|log.Ltime|log.Lmicroseconds))
	loggers.SetBaseLoggerForLevel(ldlog.Error, log.New(errorHandle, "", log.Ldate|log.Ltime|log.Lmicroseconds))
	if prefix != "" {
		loggers.SetPrefix(prefix)
	}
	return loggers
}

// InitLoggingWithLevel sets up GlobalLoggers with a minimum log level, discarding
// output below it rather than merely filtering at write time. If InitLogging has
// already set specific writers, those are kept and only the minimum level is applied.
func InitLoggingWithLevel(level ldlog.LogLevel) {
	if initializedWithSpecificWriters {
		GlobalLoggers.SetMinLevel(level)
		return
	}

	debug, info, warning, errorW := io.Writer(os.Stdout), io.Writer(os.Stdout), io.Writer(os.Stdout), io.Writer(os.Stderr)
	if level > ldlog.Debug {
		debug = ioutil.Discard
	}
	if level > ldlog.Info {
		info = ioutil.Discard
	}
	if level > ldlog.Warn {
		warning = ioutil.Discard
	}
	if level > ldlog.Error {
		errorW = ioutil.Discard
	}
	InitLogging(debug, info, warning, errorW)
	GlobalLoggers.SetMinLevel(level)
}
