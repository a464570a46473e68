// Package server exposes a masking pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bimmerbailey/dmask/internal/config"
	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/masking"
	"github.com/bimmerbailey/dmask/internal/output"
)

// Report headers set on masked responses.
const (
	HeaderMatched  = "X-Dmask-Matched"
	HeaderReplaced = "X-Dmask-Replaced"
	HeaderRemoved  = "X-Dmask-Removed"
)

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Pipeline masks request bodies. Nil returns bodies unchanged.
	Pipeline *masking.Pipeline

	// Maskers is served by GET /v1/maskers.
	Maskers []output.MaskerInfo

	Config config.ServerConfig

	// Indent is used for JSON and YAML responses.
	Indent string

	Logger *slog.Logger

	// Registry receives the server metrics. Nil creates a new registry.
	Registry *prometheus.Registry
}

// Server serves the masking API.
type Server struct {
	opts     Options
	masker   masking.FormatMasker
	result   string
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	engine   *gin.Engine
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := &Server{
		opts:     opts,
		logger:   opts.Logger,
		registry: opts.Registry,
		metrics:  NewMetrics(opts.Registry),
		masker:   masking.Passthrough{},
		result:   "passthrough",
	}
	if opts.Pipeline != nil {
		s.masker = opts.Pipeline
		s.result = "masked"
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.observe())

	engine.GET("/healthz", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := engine.Group("/v1")
	v1.POST("/mask", s.mask)
	v1.GET("/maskers", s.maskers)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	readTimeout, writeTimeout, err := s.opts.Config.Timeouts()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.opts.Config.Addr,
		Handler:           s.engine,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("masking server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down masking server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// observe records request metrics and logs each request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		s.metrics.requestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		s.metrics.requestDuration.WithLabelValues(route).Observe(latency.Seconds())

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", latency,
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			s.logger.Error("request completed", attrs...)
		case status >= 400:
			s.logger.Warn("request completed", attrs...)
		default:
			s.logger.Debug("request completed", attrs...)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	rules := 0
	if s.opts.Pipeline != nil {
		rules = s.opts.Pipeline.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"masking": s.opts.Pipeline != nil,
		"rules":   rules,
	})
}

func (s *Server) maskers(c *gin.Context) {
	maskers := s.opts.Maskers
	if maskers == nil {
		maskers = []output.MaskerInfo{}
	}
	c.JSON(http.StatusOK, maskers)
}

func (s *Server) mask(c *gin.Context) {
	format, err := requestFormat(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body, err := s.readBody(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.bodyLimitRejected.Inc()
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, report, err := s.masker.MaskAs(format, s.opts.Indent, body)
	if err != nil {
		s.metrics.documentsTotal.WithLabelValues(string(format), "invalid").Inc()
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.metrics.documentsTotal.WithLabelValues(string(format), s.result).Add(float64(max(report.Documents, 1)))
	s.metrics.observeReport(report)

	c.Header(HeaderMatched, strconv.Itoa(report.Matched))
	c.Header(HeaderReplaced, strconv.Itoa(report.Replaced))
	c.Header(HeaderRemoved, strconv.Itoa(report.Removed))
	c.Data(http.StatusOK, contentType(format), out)
}

func (s *Server) readBody(c *gin.Context) ([]byte, error) {
	r := c.Request.Body
	if limit := s.opts.Config.MaxBodyBytes; limit > 0 {
		r = http.MaxBytesReader(c.Writer, r, limit)
	}
	return io.ReadAll(r)
}

// requestFormat reads the format query parameter, falling back to the
// Content-Type header and then to JSON.
func requestFormat(c *gin.Context) (document.Format, error) {
	if q := c.Query("format"); q != "" {
		f, err := document.ParseFormat(q)
		if err != nil {
			return "", err
		}
		if f == document.FormatAuto {
			return formatFromContentType(c.ContentType()), nil
		}
		return f, nil
	}
	return formatFromContentType(c.ContentType()), nil
}

func formatFromContentType(ct string) document.Format {
	switch {
	case strings.Contains(ct, "yaml"):
		return document.FormatYAML
	case strings.Contains(ct, "ndjson"), strings.Contains(ct, "jsonl"):
		return document.FormatNDJSON
	default:
		return document.FormatJSON
	}
}

func contentType(f document.Format) string {
	switch f {
	case document.FormatYAML:
		return "application/yaml"
	case document.FormatNDJSON:
		return "application/x-ndjson"
	default:
		return "application/json"
	}
}
