package main

import "C"

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/logging"
)

// initLogging creates the process logger used by every interface built
// afterwards. level follows logrus numbering (0 panic through 6 trace);
// larger values select trace. SIONET_LOG_LEVEL overrides level when set.
//
//export initLogging
func initLogging(level uint8) {
	l := logrus.New()
	lvl := logrus.Level(level)
	if lvl > logrus.TraceLevel {
		lvl = logrus.TraceLevel
	}
	l.SetLevel(lvl)

	opts := sionet.NewOptions()
	opts.Logger = l
	opts.ApplyEnvironment()

	loggerMutex.Lock()
	processLogger = l
	loggerMutex.Unlock()

	logging.New(l, "capi", "initLogging").
		WithField("level", l.GetLevel().String()).
		Debug("Logging set up")
}

// newOptions returns interface options wired to the process logger.
func newOptions() *sionet.Options {
	opts := sionet.NewOptions()
	opts.Logger = logger()
	opts.ApplyEnvironment()
	return opts
}
