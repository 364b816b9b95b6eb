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
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mlnoga/lowpass/internal/img"
	"github.com/mlnoga/lowpass/internal/lowpass"
	"github.com/mlnoga/lowpass/internal/ops"
	"github.com/mlnoga/lowpass/internal/ops/blur"
	"github.com/mlnoga/lowpass/web"
	"go.uber.org/zap"
)

// Largest accepted request body
const MaxBodyBytes = 64 << 20

// Header carrying the request id
const RequestIDHeader = "X-Request-ID"

// Largest accepted image, in pixels, checked against the image header before decoding
const MaxPixels = 64 << 20

// Request handlers with shared settings
type server struct {
	logger     *zap.Logger
	defaults   lowpass.Filter
	quality    int
	newContext func(log io.Writer) *ops.Context
}

// Creates the router for the REST API. Filter settings not given in a request are taken from defaults
func NewRouter(logger *zap.Logger, defaults lowpass.Filter, quality int) *gin.Engine {
	return newRouter(&server{logger: logger, defaults: defaults, quality: quality, newContext: ops.NewContext})
}

func newRouter(s *server) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.logger), gin.Recovery())
	r.GET("/", getIndex)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/lowpass", s.postLowPass)
			v1.POST("/kernel", s.postKernel)
			v1.POST("/run", s.postRun)
		}
	}
	return r
}

// Listens and serves the REST API on the given address
func Serve(addr string, logger *zap.Logger, defaults lowpass.Filter, quality int) error {
	logger.Info("serving", zap.String("addr", addr), zap.Int("filterSize", defaults.Size))
	return NewRouter(logger, defaults, quality).Run(addr)
}

// Tags each request with a fresh id, and logs it after completion
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := uuid.New().String()
		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)

		c.Next()

		fields := []zap.Field{
			zap.String("requestID", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request", fields...)
		} else {
			logger.Info("request", fields...)
		}
	}
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Filter settings from the query string. Empty strings keep the defaults
type lowPassQuery struct {
	Size      *int   `form:"size"`
	Centering string `form:"centering"`
	Boundary  string `form:"boundary"`
	Method    string `form:"method"`
	Overflow  string `form:"overflow"`
	Format    string `form:"format"`
	Quality   int    `form:"quality"`
	Shape     string `form:"shape"`
	Strict    bool   `form:"strict"` // reject gray and RGBA inputs instead of converting
}

// Merges the query into a copy of the default filter, and validates the result
func (q *lowPassQuery) filter(defaults lowpass.Filter) (*lowpass.Filter, error) {
	f := defaults
	if q.Size != nil {
		f.Size = *q.Size
	}
	texts := []struct {
		s string
		u interface{ UnmarshalText([]byte) error }
	}{
		{q.Shape, &f.Shape},
		{q.Centering, &f.Centering},
		{q.Boundary, &f.Boundary},
		{q.Method, &f.Method},
		{q.Overflow, &f.Overflow},
	}
	for _, t := range texts {
		if t.s == "" {
			continue
		}
		if err := t.u.UnmarshalText([]byte(t.s)); err != nil {
			return nil, err
		}
	}
	return &f, f.Validate()
}

// Blurs the image in the request body. Responds with the encoded result, in the
// requested format or else the format of the input
func (s *server) postLowPass(c *gin.Context) {
	var q lowPassQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	f, err := q.filter(s.defaults)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, inputStatusFor(err), err)
		return
	}
	width, height, _, err := img.DecodeConfig(body)
	if err == nil {
		err = img.CheckDimensions(width, height, MaxPixels)
	}
	if err != nil {
		abortWithError(c, inputStatusFor(err), err)
		return
	}
	logger := s.logger
	if id, ok := c.Get("requestID"); ok {
		logger = logger.With(zap.Any("requestID", id))
	}
	ctx := s.newContext(zap.NewStdLog(logger).Writer())
	if err = ctx.CheckMemory(blur.WorkingBytesFor(f, width, height)); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	im, format, err := img.Decode(bytes.NewReader(body))
	if err != nil {
		abortWithError(c, inputStatusFor(err), err)
		return
	}
	if !q.Strict {
		if im, err = im.ToRGB(); err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}
	}
	if q.Format != "" {
		format = q.Format
	}
	if format == "gif" || format == "webp" {
		format = img.FormatPNG // no encoders
	}
	quality := s.quality
	if q.Quality > 0 {
		quality = q.Quality
	}

	res, err := blur.NewOpLowPass(f).Apply(im, ctx)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	var buf bytes.Buffer
	if err = res.Encode(&buf, format, quality); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.Data(http.StatusOK, img.ContentType(format), buf.Bytes())
}

type kernelArgs struct {
	Size      int               `json:"size"`
	Centering lowpass.Centering `json:"centering"`
	Shape     lowpass.Shape     `json:"shape"`
	With2D    bool              `json:"with2D"`
}

type kernelResult struct {
	Size     int         `json:"size"`
	Kernel1D []float64   `json:"kernel1D"`
	Kernel2D [][]float64 `json:"kernel2D,omitempty"`
	Sum2D    float64     `json:"sum2D"`
}

// Returns the 1D kernel for the given size, and optionally the 2D kernel
func (s *server) postKernel(c *gin.Context) {
	args := kernelArgs{Size: s.defaults.Size, Centering: s.defaults.Centering, Shape: s.defaults.Shape}
	if err := c.ShouldBindJSON(&args); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	k1, err := lowpass.BuildKernel1DShaped(args.Size, args.Centering, args.Shape)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	k2 := lowpass.BuildKernel2D(k1)
	res := kernelResult{Size: args.Size, Kernel1D: k1, Sum2D: lowpass.KernelSum2D(k2)}
	if args.With2D {
		res.Kernel2D = make([][]float64, len(k1))
		for a := range res.Kernel2D {
			res.Kernel2D[a] = k2.RawRowView(a)
		}
	}
	c.JSON(http.StatusOK, res)
}

// Runs an operator sequence on files within the working directory tree. Streams the log as plain text
func (s *server) postRun(c *gin.Context) {
	var seq ops.OpSequence
	if err := c.ShouldBindJSON(&seq); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	logWriter := c.Writer
	logWriter.Header().Set("Content-Type", "text/plain; charset=utf-8")
	logWriter.WriteHeader(http.StatusOK)

	ctx := s.newContext(logWriter)
	ctx.Sandboxed = true
	if _, err := ops.Run(&seq, ctx); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		c.Error(err)
	}
	logWriter.Flush()
}

// Maps filter, decoding and encoding errors to HTTP status codes
func statusFor(err error) int {
	var de *lowpass.DomainError
	var se *lowpass.ShapeError
	var oe *lowpass.OptionError
	var me *http.MaxBytesError
	switch {
	case errors.As(err, &me), errors.Is(err, img.ErrTooLarge), errors.Is(err, ops.ErrMemoryBudget):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &de), errors.As(err, &se), errors.As(err, &oe),
		errors.Is(err, img.ErrUnknownSuffix), errors.Is(err, img.ErrUnsupportedChannels):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Like statusFor, but blames the client for any failure to read or decode the request body
func inputStatusFor(err error) int {
	if status := statusFor(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusBadRequest
}

func abortWithError(c *gin.Context, status int, err error) {
	c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// Ensures the lowPass operator is registered for JSON decoding of sequences
var _ ops.Operator = (*blur.OpLowPass)(nil)
