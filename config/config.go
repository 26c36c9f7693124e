// Package config - Loads service settings from defaults, a YAML file and the environment.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// EnvPrefix prefixes every environment override, e.g. DETECT_SERVER_ADDRESS.
const EnvPrefix = "DETECT"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Detection DetectionConfig `yaml:"detection"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Predict   PredictConfig   `yaml:"predict"`
}

// ServerConfig configures the upload endpoint.
type ServerConfig struct {
	Address        string        `yaml:"address"`        // listen address
	BodyLimit      string        `yaml:"bodylimit"`      // maximum request body, e.g. "32M"
	UploadDir      string        `yaml:"uploaddir"`      // keep uploaded files here when set
	RequestTimeout time.Duration `yaml:"requesttimeout"` // per request deadline, 0 disables
}

// ModelConfig locates the model and describes its tensors.
type ModelConfig struct {
	Path           string `yaml:"path"`
	Classes        string `yaml:"classes"` // class table file, or "coco"
	InputName      string `yaml:"inputname"`
	OutputName     string `yaml:"outputname"`
	InputSize      int    `yaml:"inputsize"`
	Candidates     int    `yaml:"candidates"`
	MaxPixels      int64  `yaml:"maxpixels"` // largest source image accepted for decoding
	Provider       string `yaml:"provider"` // cpu, cuda, coreml or openvino
	DeviceID       int    `yaml:"deviceid"`   // CUDA device
	DeviceType     string `yaml:"devicetype"` // OpenVINO device, e.g. GPU
	Precision      string `yaml:"precision"`  // OpenVINO precision, e.g. FP16
	LibPath        string `yaml:"libpath"`
	IntraOpThreads int    `yaml:"intraopthreads"`
	InterOpThreads int    `yaml:"interopthreads"`
}

// DetectionConfig holds the suppression parameters.
type DetectionConfig struct {
	ScoreThreshold float32 `yaml:"scorethreshold"`
	IoUThreshold   float32 `yaml:"iouthreshold"`
	MaxOutputs     int     `yaml:"maxoutputs"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Cleanup time.Duration `yaml:"cleanup"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // also write to this file when set
	JSON  bool   `yaml:"json"`
}

// PredictConfig configures the one-shot predict command.
type PredictConfig struct {
	Image string `yaml:"image"`
}

// setDefaultConfig registers the default value of every key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.bodylimit", "32M")
	v.SetDefault("server.uploaddir", "")
	v.SetDefault("server.requesttimeout", 30*time.Second)

	v.SetDefault("model.path", "./model.onnx")
	v.SetDefault("model.classes", "./classes.json")
	v.SetDefault("model.inputname", model.DefaultInputName)
	v.SetDefault("model.outputname", model.DefaultOutputName)
	v.SetDefault("model.inputsize", model.DefaultInputSize)
	v.SetDefault("model.candidates", model.DefaultCandidates)
	v.SetDefault("model.maxpixels", preprocess.DefaultMaxPixels)
	v.SetDefault("model.provider", string(providers.CPUBackend))
	v.SetDefault("model.deviceid", 0)
	v.SetDefault("model.devicetype", "")
	v.SetDefault("model.precision", "")
	v.SetDefault("model.libpath", "")
	v.SetDefault("model.intraopthreads", 0)
	v.SetDefault("model.interopthreads", 0)

	v.SetDefault("detection.scorethreshold", postprocess.DefaultScoreThreshold)
	v.SetDefault("detection.iouthreshold", postprocess.DefaultIoUThreshold)
	v.SetDefault("detection.maxoutputs", postprocess.DefaultMaxOutputs)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.json", false)

	v.SetDefault("predict.image", "./test.jpg")
}

// NewViper returns a viper instance with defaults and environment overrides
// wired, ready for flag bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaultConfig(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration with defaults and environment overrides.
//
// Arguments:
//   - path: Optional YAML file; empty skips the file.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: If the file cannot be read or a value is invalid.
func Load(path string) (*Config, error) {
	return LoadViper(NewViper(), path)
}

// LoadViper is Load on a caller supplied viper instance, typically one with
// command line flags bound to it.
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	d := c.Detection
	if d.ScoreThreshold < 0 || d.ScoreThreshold > 1 {
		return errors.Errorf("detection.scorethreshold must be within [0, 1], got %v", d.ScoreThreshold)
	}
	if d.IoUThreshold < 0 || d.IoUThreshold > 1 {
		return errors.Errorf("detection.iouthreshold must be within [0, 1], got %v", d.IoUThreshold)
	}
	if d.MaxOutputs < 1 {
		return errors.Errorf("detection.maxoutputs must be at least 1, got %d", d.MaxOutputs)
	}

	m := c.Model
	if m.InputSize < 1 {
		return errors.Errorf("model.inputsize must be at least 1, got %d", m.InputSize)
	}
	if m.Candidates < 1 {
		return errors.Errorf("model.candidates must be at least 1, got %d", m.Candidates)
	}
	if m.MaxPixels < 1 {
		return errors.Errorf("model.maxpixels must be at least 1, got %d", m.MaxPixels)
	}
	if m.InputName == "" || m.OutputName == "" {
		return errors.New("model.inputname and model.outputname are required")
	}
	if _, err := providers.ParseBackend(m.Provider); err != nil {
		return err
	}
	if _, err := model.ParsePrecision(m.Precision); err != nil {
		return errors.Wrap(err, "model.precision")
	}
	if m.DeviceID < 0 {
		return errors.Errorf("model.deviceid cannot be negative, got %d", m.DeviceID)
	}
	if m.IntraOpThreads < 0 || m.InterOpThreads < 0 {
		return errors.New("model thread counts cannot be negative")
	}

	if c.Server.BodyLimit == "" {
		return errors.New("server.bodylimit is required")
	}
	if c.Server.RequestTimeout < 0 {
		return errors.Errorf("server.requesttimeout cannot be negative, got %s", c.Server.RequestTimeout)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return errors.Errorf("cache.ttl must be positive when the cache is enabled, got %s", c.Cache.TTL)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// NMSConfig returns the suppression parameters.
func (c *Config) NMSConfig() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		MaxOutputs:     c.Detection.MaxOutputs,
		IoUThreshold:   c.Detection.IoUThreshold,
		ScoreThreshold: c.Detection.ScoreThreshold,
	}
}

// ModelSpec returns the tensor contract for a table of numClasses classes.
func (c *Config) ModelSpec(numClasses int) model.Spec {
	spec := model.NewSpec(numClasses)
	spec.InputName = c.Model.InputName
	spec.OutputName = c.Model.OutputName
	spec.InputSize = c.Model.InputSize
	spec.Candidates = c.Model.Candidates
	return spec
}

// ProviderConfig returns the execution provider settings.
func (c *Config) ProviderConfig() providers.Config {
	// Validate has already accepted both names.
	backend, _ := providers.ParseBackend(c.Model.Provider)
	precision, _ := model.ParsePrecision(c.Model.Precision)
	return providers.Config{
		Backend:        backend,
		IntraOpThreads: c.Model.IntraOpThreads,
		InterOpThreads: c.Model.InterOpThreads,
		CUDA:           providers.CUDAOptions{DeviceID: c.Model.DeviceID},
		OpenVINO: providers.OpenVINOOptions{
			DeviceType: c.Model.DeviceType,
			Precision:  precision,
		},
	}
}
