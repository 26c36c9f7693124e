// Package server - HTTP upload endpoint for image labelling.
package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
)

// UploadField is the multipart field carrying the image.
const UploadField = "image"

// Status strings returned in UploadResponse.
const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed to upload files"
)

// Labeler labels one encoded image.
type Labeler interface {
	Detect(ctx context.Context, data []byte) (*detector.Result, error)
}

// UploadResponse is the body of every POST /file answer.
type UploadResponse struct {
	Status  string   `json:"status"`
	Result  []string `json:"result,omitempty"`
	Message string   `json:"message,omitempty"`
}

// successResponse keeps an empty result visible as [].
type successResponse struct {
	Status string   `json:"status"`
	Result []string `json:"result"`
}

// Server wires the HTTP routes to a Labeler.
type Server struct {
	Echo    *echo.Echo
	cfg     config.ServerConfig
	labeler Labeler
	log     logrus.FieldLogger
}

// New creates the server and registers its routes and middleware.
//
// Arguments:
//   - cfg: Listen address, body limit, upload directory and request timeout.
//   - labeler: Runs detection for uploads.
//   - log: Request logger.
//   - gatherer: Source for GET /metrics; nil disables the route.
//
// Returns:
//   - *Server: The server, not yet listening.
func New(cfg config.ServerConfig, labeler Labeler, log logrus.FieldLogger, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{Echo: e, cfg: cfg, labeler: labeler, log: log}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.requestLogger())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	e.GET("/", s.handleHello)
	e.GET("/healthz", s.handleHealth)
	e.POST("/file", s.handleFile)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return s
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.log.WithField("address", s.cfg.Address).Info("server starting")
	if err := s.Echo.Start(s.cfg.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := s.log.WithFields(logrus.Fields{
				"request_id": v.RequestID,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"ip":         v.RemoteIP,
				"latency":    v.Latency,
			})
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("request")
			return nil
		},
	})
}

func (s *Server) handleHello(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Hello World!"})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleFile labels the uploaded image. Every failure answers 500 except an
// oversized body, which answers 413; an image without detections is a 200
// with an empty result.
func (s *Server) handleFile(c echo.Context) error {
	log := s.log.WithField("request_id", c.Response().Header().Get(echo.HeaderXRequestID))

	data, name, err := readUpload(c)
	if err != nil {
		// A body without Content-Length only trips the limit while being read.
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			log.WithError(err).Warn("upload exceeds the body limit")
			return echo.ErrStatusRequestEntityTooLarge
		}
		return s.fail(c, log, detector.NewInputError(err))
	}

	if s.cfg.UploadDir != "" {
		if err := s.persist(name, data); err != nil {
			log.WithError(err).Warn("failed to keep uploaded file")
		}
	}

	ctx := c.Request().Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.labeler.Detect(ctx, data)
	if err != nil {
		return s.fail(c, log, err)
	}

	log.WithFields(logrus.Fields{
		"file":     name,
		"labels":   result.Labels,
		"count":    result.Count,
		"cached":   result.Cached,
		"duration": time.Since(start),
	}).Info("image labelled")

	labels := result.Labels
	if labels == nil {
		labels = []string{}
	}
	return c.JSON(http.StatusOK, successResponse{Status: StatusSuccess, Result: labels})
}

func (s *Server) fail(c echo.Context, log logrus.FieldLogger, err error) error {
	switch {
	case detector.IsConfigurationError(err):
		log.WithError(err).WithField("fatal_config", true).Error("model and class table do not match")
	case errors.Is(err, detector.ErrInputMissing):
		log.WithError(err).Warn("image not found")
	default:
		log.WithError(err).Error("detection failed")
	}
	return c.JSON(http.StatusInternalServerError, UploadResponse{Status: StatusFailed, Message: err.Error()})
}

func readUpload(c echo.Context) ([]byte, string, error) {
	fh, err := c.FormFile(UploadField)
	if err != nil {
		return nil, "", errors.Wrapf(err, "no %q file in request", UploadField)
	}
	src, err := fh.Open()
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to open upload")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read upload")
	}
	return data, fh.Filename, nil
}

// persist stores the upload under its base name, or a generated one when the
// client sent none.
func (s *Server) persist(name string, data []byte) error {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = uuid.NewString()
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create upload directory")
	}
	return os.WriteFile(filepath.Join(s.cfg.UploadDir, base), data, 0o644)
}
