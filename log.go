package main

import (
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/btree-query-bench/scancursor/dbms/index/bptree"
	"github.com/btree-query-bench/scancursor/dbms/index/btree"
	"github.com/btree-query-bench/scancursor/dbms/index/lsm"
	"github.com/btree-query-bench/scancursor/dbms/pager"
	"github.com/cockroachdb/errors"
	"github.com/jrick/logrotate/rotator"
)

// logWriter sends log output to stdout and, once initLogRotator has run, to
// the rotated log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if n, err := os.Stdout.Write(p); err != nil {
		return n, err
	}
	if logRotator != nil {
		if n, err := logRotator.Write(p); err != nil {
			return n, err
		}
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it write to the backend. When adding new subsystems,
// add the subsystem logger variable here and to the subsystemLoggers map.
var (
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is nil unless a log file is configured. It must be closed on
	// shutdown.
	logRotator *rotator.Rotator

	bnchLog = backendLog.Logger("BNCH")
	btreLog = backendLog.Logger("BTRE")
	bptrLog = backendLog.Logger("BPTR")
	pagrLog = backendLog.Logger("PAGR")
	lsmLog  = backendLog.Logger("LSM")
)

func init() {
	btree.UseLogger(btreLog)
	bptree.UseLogger(bptrLog)
	pager.UseLogger(pagrLog)
	lsm.UseLogger(lsmLog)
}

var subsystemLoggers = map[string]btclog.Logger{
	"BNCH": bnchLog,
	"BTRE": btreLog,
	"BPTR": bptrLog,
	"PAGR": pagrLog,
	"LSM":  lsmLog,
}

// initLogRotator starts writing logs to logFile, rolling it over every 10 MB
// and keeping three old files.
func initLogRotator(logFile string) error {
	if dir, _ := filepath.Split(logFile); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrap(err, "create log directory")
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return errors.Wrap(err, "create file rotator")
	}
	logRotator = r
	return nil
}

// setLogLevels sets every subsystem to logLevel. Unknown levels fall back to
// info.
func setLogLevels(logLevel string) {
	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		level = btclog.LevelInfo
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
