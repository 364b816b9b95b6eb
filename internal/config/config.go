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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/mlnoga/lowpass/internal/img"
	"github.com/mlnoga/lowpass/internal/lowpass"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding the configuration file
const (
	EnvAddr       = "LOWPASS_ADDR"
	EnvFilterSize = "LOWPASS_FILTER_SIZE"
	EnvLog        = "LOWPASS_LOG"
)

// Settings for the REST server
type Server struct {
	Addr   string `yaml:"addr"`
	Chroot string `yaml:"chroot"` // change filesystem root before serving, requires root
	Setuid int    `yaml:"setuid"` // change to this user id before serving, <0 to keep
}

// Settings for log output
type Log struct {
	File       string        `yaml:"file"` // empty for stdout only
	MaxSizeMB  int           `yaml:"maxSizeMB"`
	MaxBackups int           `yaml:"maxBackups"`
	Level      zapcore.Level `yaml:"level"` // server request log level
}

// Settings for image output
type Output struct {
	Quality int `yaml:"quality"` // JPEG only
}

// Application configuration
type Config struct {
	Filter lowpass.Filter `yaml:"filter"`
	Server Server         `yaml:"server"`
	Log    Log            `yaml:"log"`
	Output Output         `yaml:"output"`
}

// Returns the default configuration
func Default() *Config {
	return &Config{
		Filter: *lowpass.NewFilter(lowpass.DefaultFilterSize),
		Server: Server{Addr: ":8080", Setuid: -1},
		Log:    Log{MaxSizeMB: 10, MaxBackups: 3, Level: zapcore.InfoLevel},
		Output: Output{Quality: img.DefaultQuality},
	}
}

// Loads the configuration from the YAML file with the given name, on top of the defaults.
// An empty file name returns the defaults. Unknown keys are an error
func Load(fileName string) (*Config, error) {
	c := Default()
	if fileName == "" {
		return c, nil
	}
	bs, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true)
	if err = dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config %s: %w", fileName, err)
	}
	return c, c.Validate()
}

// Loads variables from the given .env file into the process environment, if it exists,
// and applies the LOWPASS_* overrides. Variables already set in the environment take precedence
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("env file %s: %w", envFile, err)
		}
	}
	if v, ok := os.LookupEnv(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := os.LookupEnv(EnvFilterSize); ok && v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvFilterSize, v, err)
		}
		c.Filter.Size = size
	}
	if v, ok := os.LookupEnv(EnvLog); ok {
		c.Log.File = v
	}
	return c.Validate()
}

// Checks the filter size and output quality
func (c *Config) Validate() error {
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output quality %d: must be in [1,100]", c.Output.Quality)
	}
	return nil
}

// Encodes the configuration as YAML
func (c *Config) String() string {
	bs, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(bs)
}
