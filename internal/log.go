// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Singleton log writer. Writes to stdout, and optionally to a rotating file.
// Does not add prefixes, or force newlines.

// Standard output target, replaceable for testing
var logOut io.Writer = os.Stdout

// The optional additional file to log into
var logFile *lumberjack.Logger

// Rotation limits for the log file
var (
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
)

// Enables logging to file, in addition to stdout. Closes any previous log file
func LogAlsoToFile(fileName string) (err error) {
	if err = LogClose(); err != nil {
		return err
	}
	fileName = filepath.Clean(fileName)
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666) // fail early on bad paths
	if err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	logFile = &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    LogMaxSizeMB,
		MaxBackups: LogMaxBackups,
	}
	return nil
}

// Returns a writer for stdout and the log file, if any
func LogWriter() io.Writer {
	if logFile == nil {
		return logOut
	}
	return io.MultiWriter(logOut, logFile)
}

func LogPrint(args ...interface{}) (n int, err error) {
	return fmt.Fprint(LogWriter(), args...)
}

func LogPrintln(args ...interface{}) (n int, err error) {
	return fmt.Fprintln(LogWriter(), args...)
}

func LogPrintf(format string, args ...interface{}) (n int, err error) {
	return fmt.Fprintf(LogWriter(), format, args...)
}

func LogFatal(args ...interface{}) {
	LogPrintln(args...)
	LogClose()
	os.Exit(1)
}

func LogFatalf(format string, args ...interface{}) {
	LogPrintf(format, args...)
	LogClose()
	os.Exit(1)
}

// Closes the log file, if any. Further output goes to stdout only
func LogClose() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
