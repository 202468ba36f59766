package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	NATS    NATSConfig    `yaml:"nats"`
	Vision  VisionConfig  `yaml:"vision"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port          int    `yaml:"port"`
	MonitorAPIKey string `yaml:"monitor_api_key"`
}

// NATSConfig configures the optional alert-event publisher. An empty URL
// disables publication entirely; the pipeline does not depend on it.
type NATSConfig struct {
	URL              string `yaml:"url"`
	AlertSubjectBase string `yaml:"alert_subject_base"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	FaceThreshold      float64 `yaml:"face_threshold"`
	ObjectThreshold    float64 `yaml:"object_threshold"`
	IntraOpThreads     int     `yaml:"intra_op_threads"`
	InterOpThreads     int     `yaml:"inter_op_threads"`
	WorkerCount        int     `yaml:"worker_count"`
	DownscaleWidth     int     `yaml:"downscale_width"`
	FrameSkipModulo    int     `yaml:"frame_skip_modulo"`
	ObjectStrideModulo int     `yaml:"object_stride_modulo"`
}

// SessionConfig bounds the per-session temporal state rings.
type SessionConfig struct {
	AlertRingSize   int `yaml:"alert_ring_size"`
	AlertMaxAgeSec  int `yaml:"alert_max_age_seconds"`
	SignalHistory   int `yaml:"signal_history_size"`
	FPSHistory      int `yaml:"fps_history_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.FaceThreshold == 0 {
		cfg.Vision.FaceThreshold = 0.5
	}
	if cfg.Vision.ObjectThreshold == 0 {
		cfg.Vision.ObjectThreshold = 0.5
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 8
	}
	if cfg.Vision.DownscaleWidth == 0 {
		cfg.Vision.DownscaleWidth = 320
	}
	if cfg.Vision.FrameSkipModulo == 0 {
		cfg.Vision.FrameSkipModulo = 3
	}
	if cfg.Vision.ObjectStrideModulo == 0 {
		cfg.Vision.ObjectStrideModulo = 10
	}
	if cfg.NATS.AlertSubjectBase == "" {
		cfg.NATS.AlertSubjectBase = "proctor.alerts"
	}
	if cfg.Session.AlertRingSize == 0 {
		cfg.Session.AlertRingSize = 15
	}
	if cfg.Session.AlertMaxAgeSec == 0 {
		cfg.Session.AlertMaxAgeSec = 5
	}
	if cfg.Session.SignalHistory == 0 {
		cfg.Session.SignalHistory = 30
	}
	if cfg.Session.FPSHistory == 0 {
		cfg.Session.FPSHistory = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROCTOR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PROCTOR_MONITOR_API_KEY"); v != "" {
		cfg.Server.MonitorAPIKey = v
	}
	if v := os.Getenv("PROCTOR_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PROCTOR_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("PROCTOR_FACE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vision.FaceThreshold = f
		}
	}
	if v := os.Getenv("PROCTOR_OBJECT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vision.ObjectThreshold = f
		}
	}
	if v := os.Getenv("PROCTOR_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("PROCTOR_DOWNSCALE_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.DownscaleWidth = n
		}
	}
	if v := os.Getenv("PROCTOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PROCTOR_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
