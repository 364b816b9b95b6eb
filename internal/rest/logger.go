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

package rest

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Creates a JSON request logger writing to the console, and to a rotating file if fileName is not empty
func NewLogger(level zapcore.Level, console io.Writer, fileName string, maxSizeMB, maxBackups int) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(console), level)}
	if fileName != "" {
		file := &lumberjack.Logger{
			Filename:   fileName,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(file), level))
	}
	return zap.New(zapcore.NewTee(cores...))
}
