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

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/fatih/color"
	nl "github.com/mlnoga/lowpass/internal"
	"github.com/mlnoga/lowpass/internal/config"
	"github.com/mlnoga/lowpass/internal/img"
	"github.com/mlnoga/lowpass/internal/lowpass"
	"github.com/mlnoga/lowpass/internal/ops"
	"github.com/mlnoga/lowpass/internal/ops/blur"
	"github.com/mlnoga/lowpass/internal/rest"
	"github.com/mlnoga/lowpass/internal/srcembed"
	"github.com/mlnoga/lowpass/internal/stats"
	"github.com/mlnoga/lowpass/internal/viewer"
	"gonum.org/v1/gonum/mat"
)

const version = "0.1.0"

// Placeholder for automatic file names
const auto = "%auto"

// Largest kernel printed in full by the kernel command
const maxPrintedKernel = 16

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", auto, "save output to `file`. `%auto` appends .filtered.png to the input name without suffix. Use %d for the image number with several inputs")
var logName = flag.String("log", auto, "save log output to `file`. `%auto` replaces suffix of output file with .log")
var configFile = flag.String("config", "", "load settings from YAML `file`")
var envFile = flag.String("env", ".env", "load environment variables from `file`, if it exists")

var size = flag.Int("size", lowpass.DefaultFilterSize, "filter size n, the kernel spans n by n pixels")
var shape = flag.String("shape", lowpass.ShapeExponential.String(), "kernel shape, one of exponential, gaussian or box")
var centering = flag.String("centering", lowpass.CenterFloor.String(), "kernel offsets, floor for [-n/2, n/2) or symmetric")
var boundary = flag.String("boundary", lowpass.BoundaryZero.String(), "samples outside the image, zero or reflect")
var method = flag.String("method", lowpass.MethodDirect.String(), "convolution method, direct or separable")
var overflow = flag.String("overflow", lowpass.OverflowClamp.String(), "conversion of filtered values to 8 bits, clamp or wrap")
var threads = flag.Int("threads", 0, "maximum number of threads, 0=auto")
var quality = flag.Int("quality", img.DefaultQuality, "JPEG output quality in [1,100]")
var strict = flag.Bool("strict", false, "reject inputs which are not 8-bit RGB, instead of converting them")
var show = flag.Bool("show", false, "open the output with the default image viewer")

var addr = flag.String("addr", ":8080", "serve: listen on this `address`")
var chroot = flag.String("chroot", "", "serve: change filesystem root to this `dir` before serving, requires root")
var setuid = flag.Int("setuid", -1, "serve: change to this user id before serving, <0 to keep")

var placeholder = flag.String("placeholder", srcembed.DefaultPlaceholder, "embed: declaration to replace with the source literal")

var errColor = color.New(color.FgRed, color.Bold)

func main() {
	logWriter := io.Writer(os.Stdout)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Lowpass Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (blur|stats|kernel|embed|serve|config|legal|version) (img0.png ... imgn.png)

Commands:
  blur    Low-pass filter the R, G and B channels of the input images
  stats   Show input image statistics
  kernel  Show the filter kernel for the current settings
  embed   Embed a source file as string literal into another file. Args are source and destination
  serve   Serve the REST API
  config  Show the effective configuration
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}

	// Initialize logging to file in addition to stdout, if selected
	if *logName == auto {
		*logName = ""
		if args[0] == "blur" && len(args) > 1 {
			*logName = autoLogName(outputName(args[1], *out))
		}
	}
	if *logName != "" {
		if err := nl.LogAlsoToFile(*logName); err != nil {
			fail(fmt.Errorf("unable to open logfile '%s': %w", *logName, err))
		}
		logWriter = nl.LogWriter()
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	c := ops.NewContext(logWriter)
	if cfg.Filter.MaxThreads > 0 && cfg.Filter.MaxThreads < c.MaxThreads {
		c.MaxThreads = cfg.Filter.MaxThreads
	}

	switch args[0] {
	case "blur":
		fmt.Fprintf(logWriter, "Running on %v\n", c)
		err = cmdBlur(args[1:], cfg, c)

	case "stats":
		err = cmdStats(args[1:], c)

	case "kernel":
		err = cmdKernel(&cfg.Filter, logWriter)

	case "embed":
		if len(args) != 3 {
			err = errors.New("embed needs a source and a destination file")
			break
		}
		if err = srcembed.PrepareFile(args[1], args[2], *placeholder); err == nil {
			fmt.Fprintf(logWriter, "Embedded %s into %s\n", args[1], args[2])
		}

	case "serve":
		err = cmdServe(cfg)

	case "config":
		fmt.Fprint(logWriter, cfg)

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		fail(err)
	}
	nl.LogClose()
}

// Prints the error in color to stderr and to the log file, then exits
func fail(err error) {
	errColor.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	if *logName != "" {
		nl.LogPrintf("Error: %s\n", err.Error())
	}
	nl.LogClose()
	os.Exit(-1)
}

// Loads the configuration file, then applies the environment and explicitly set flags in that order
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if err = cfg.ApplyEnv(*envFile); err != nil {
		return nil, err
	}
	return cfg, applyFlags(cfg)
}

// Overrides configuration values with the flags given on the command line
func applyFlags(cfg *config.Config) (err error) {
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "size":
			cfg.Filter.Size = *size
		case "shape":
			err = cfg.Filter.Shape.UnmarshalText([]byte(*shape))
		case "centering":
			err = cfg.Filter.Centering.UnmarshalText([]byte(*centering))
		case "boundary":
			err = cfg.Filter.Boundary.UnmarshalText([]byte(*boundary))
		case "method":
			err = cfg.Filter.Method.UnmarshalText([]byte(*method))
		case "overflow":
			err = cfg.Filter.Overflow.UnmarshalText([]byte(*overflow))
		case "threads":
			cfg.Filter.MaxThreads = *threads
		case "quality":
			cfg.Output.Quality = *quality
		case "addr":
			cfg.Server.Addr = *addr
		case "chroot":
			cfg.Server.Chroot = *chroot
		case "setuid":
			cfg.Server.Setuid = *setuid
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// Returns the output file name for the given input. Patterns other than %auto are kept as is
func outputName(in, pattern string) string {
	if pattern != auto {
		return pattern
	}
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".filtered.png"
}

// Replaces the suffix of the output file with .log. Output patterns lose their %d placeholder
func autoLogName(outName string) string {
	outName = strings.ReplaceAll(outName, "%d", "")
	return strings.TrimSuffix(outName, filepath.Ext(outName)) + ".log"
}

// Builds the operator sequence for filtering a single file
func newBlurSequence(id int, in, outPattern string, cfg *config.Config) *ops.OpSequence {
	load := ops.NewOpLoad(id, in)
	load.RGB = !*strict
	save := ops.NewOpSave(outPattern)
	save.Quality = cfg.Output.Quality
	f := cfg.Filter
	return ops.NewOpSequence(
		load,
		ops.NewOpStatsDefault(),
		blur.NewOpLowPass(&f),
		ops.NewOpStatsDefault(),
		save,
	)
}

func cmdBlur(args []string, cfg *config.Config, c *ops.Context) error {
	if len(args) == 0 {
		return errors.New("no input files")
	}
	if len(args) > 1 && *out != auto && !strings.Contains(*out, "%d") {
		return fmt.Errorf("output '%s' needs a %%d placeholder for %d inputs", *out, len(args))
	}

	for i, in := range args {
		id := i + 1
		seq := newBlurSequence(id, in, outputName(in, *out), cfg)
		if i == 0 {
			m, err := json.MarshalIndent(seq, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Log, "\nFiltering %d files with these settings:\n%s\n", len(args), string(m))
		}
		if _, err := ops.Run(seq, c); err != nil {
			return err
		}
		if *show {
			save := seq.Steps[len(seq.Steps)-1].(*ops.OpSave)
			if err := viewer.Show(save.FileName(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func cmdStats(args []string, c *ops.Context) error {
	if len(args) == 0 {
		return errors.New("no input files")
	}
	for i, in := range args {
		load := ops.NewOpLoad(i+1, in)
		load.RGB = false
		if _, err := ops.Run(ops.NewOpSequence(load, ops.NewOpStats(stats.DefaultNumSamples)), c); err != nil {
			return err
		}
	}
	return nil
}

// Prints the one-dimensional kernel, and the full two-dimensional kernel if small enough
func cmdKernel(f *lowpass.Filter, w io.Writer) error {
	k1, err := lowpass.BuildKernel1DShaped(f.Size, f.Centering, f.Shape)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s kernel of size %d with %s centering:\n%.6g\n", f.Shape, f.Size, f.Centering, k1)
	k2 := lowpass.BuildKernel2D(k1)
	if f.Size <= maxPrintedKernel {
		fmt.Fprintf(w, "\n%.4g\n", mat.Formatted(k2, mat.Squeeze()))
	}
	fmt.Fprintf(w, "\nSum of 2D kernel: %.9g\n", lowpass.KernelSum2D(k2))
	return nil
}

func cmdServe(cfg *config.Config) error {
	logger := rest.NewLogger(cfg.Log.Level, os.Stdout, cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
	defer logger.Sync()
	if err := rest.MakeSandbox(cfg.Server.Chroot, cfg.Server.Setuid, logger); err != nil {
		return err
	}
	return rest.Serve(cfg.Server.Addr, logger, cfg.Filter, cfg.Output.Quality)
}
