package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"simcam-go/internal/convert"
	"simcam-go/internal/imageio"
	"simcam-go/internal/types"
)

// AppConfig holds every setting of a capture or pairing run.
type AppConfig struct {
	OutputRoot     string            `yaml:"output_root"`
	Session        string            `yaml:"session"`
	Format         string            `yaml:"format"`
	Quality        int               `yaml:"quality"`
	Conversions    map[string]string `yaml:"conversions"`
	Endpoint       string            `yaml:"endpoint"`
	Port           int               `yaml:"port"`
	Workers        int               `yaml:"workers"`
	IngestLogEvery int               `yaml:"ingest_log_every"`
	RawLogEnabled  bool              `yaml:"raw_log"`
	RawLogDir      string            `yaml:"raw_log_dir"`
	PairOnExit     bool              `yaml:"pair_on_exit"`
	Debug          bool              `yaml:"debug"`
	DebugFPS       float64           `yaml:"debug_fps"`
	DebugWidth     int               `yaml:"debug_width"`
	DebugHeight    int               `yaml:"debug_height"`
	StatusInterval time.Duration     `yaml:"status_interval"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() AppConfig {
	return AppConfig{
		OutputRoot:     "_out",
		Format:         string(imageio.JPEG),
		Quality:        imageio.DefaultQuality,
		Conversions:    defaultConversions(),
		Endpoint:       "tcp://localhost:31001",
		Workers:        4,
		IngestLogEvery: 100,
		RawLogDir:      "rawlog",
		DebugFPS:       10,
		DebugWidth:     1280,
		DebugHeight:    720,
		StatusInterval: time.Second,
	}
}

func defaultConversions() map[string]string {
	out := make(map[string]string)
	for kind, name := range convert.DefaultNames() {
		out[string(kind)] = name
	}
	return out
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and names. Conversion problems are returned as
// *types.ConfigurationError.
func (c AppConfig) Validate() error {
	if c.OutputRoot == "" {
		return errors.New("output_root must not be empty")
	}
	if _, err := imageio.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality %d out of range 1-100", c.Quality)
	}
	if c.Session != "" {
		if err := types.CheckSession(c.Session); err != nil {
			return err
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.StatusInterval < 0 {
		return fmt.Errorf("status_interval must not be negative, got %s", c.StatusInterval)
	}
	if c.Debug && (c.DebugFPS <= 0 || c.DebugWidth < 1 || c.DebugHeight < 1) {
		return errors.New("debug simulator needs positive debug_fps, debug_width and debug_height")
	}
	_, err := c.ConversionTable()
	return err
}

// ConversionTable builds the sensor-kind lookup from the configured names.
func (c AppConfig) ConversionTable() (*convert.Table, error) {
	byKind := make(map[types.SensorKind]string, len(c.Conversions))
	for kind, name := range c.Conversions {
		byKind[types.SensorKind(kind)] = name
	}
	return convert.NewTable(byKind)
}

// ImageFormat returns the parsed output format.
func (c AppConfig) ImageFormat() imageio.Format {
	f, err := imageio.ParseFormat(c.Format)
	if err != nil {
		return imageio.JPEG
	}
	return f
}
