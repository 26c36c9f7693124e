package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
)

// pipeline is a fully wired detector plus the registry its metrics live in.
type pipeline struct {
	detector *detector.Detector
	registry *prometheus.Registry
}

// buildPipeline loads the class table and model and assembles the detector.
//
// Arguments:
//   - cfg: The validated configuration.
//   - log: The logger handed to the detector.
//
// Returns:
//   - *pipeline: The pipeline, to be released with close.
//   - error: An error if any component fails to load.
func buildPipeline(cfg *config.Config, log logrus.FieldLogger) (*pipeline, error) {
	classes, err := models.LoadClassTable(cfg.Model.Classes)
	if err != nil {
		return nil, err
	}

	engine, err := inference.NewONNXEngine(inference.Config{
		ModelPath: cfg.Model.Path,
		LibPath:   cfg.Model.LibPath,
		Spec:      cfg.ModelSpec(classes.Len()),
		Provider:  cfg.ProviderConfig(),
	})
	if err != nil {
		return nil, err
	}

	pre, err := preprocess.NewPreprocessor(engine.Spec(), preprocess.WithMaxPixels(cfg.Model.MaxPixels))
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewDetectorMetrics(registry)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	opts := []detector.Option{
		detector.WithNMSConfig(cfg.NMSConfig()),
		detector.WithLogger(log),
		detector.WithMetrics(m),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, detector.WithCache(cfg.Cache.TTL, cfg.Cache.Cleanup))
	}

	det, err := detector.New(pre, engine, classes, opts...)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"model":    cfg.Model.Path,
		"classes":  classes.Len(),
		"provider": cfg.Model.Provider,
		"input":    engine.Spec().InputShape(),
	}).Info("detector ready")

	return &pipeline{detector: det, registry: registry}, nil
}

// close releases the engine and the ONNX Runtime environment.
func (p *pipeline) close(log logrus.FieldLogger) {
	if err := p.detector.Close(); err != nil {
		log.WithError(err).Warn("error closing detector")
	}
	if err := inference.Shutdown(); err != nil {
		log.WithError(err).Warn("error shutting down onnxruntime")
	}
}
