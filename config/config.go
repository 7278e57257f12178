package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FACECAP"

// API locates the backend. ControlURL serves the collection-app control
// plane and falls back to BaseURL when empty.
type API struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	ControlURL     string `mapstructure:"control_url" yaml:"control_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Recording holds the capture timings. The countdown runs Seconds ticks of
// TickMillis each; the cosmetic upload status rotates every StatusMillis.
type Recording struct {
	Seconds      int    `mapstructure:"seconds" yaml:"seconds"`
	TickMillis   int    `mapstructure:"tick_ms" yaml:"tick_ms"`
	StatusMillis int    `mapstructure:"status_ms" yaml:"status_ms"`
	Width        int    `mapstructure:"width" yaml:"width"`
	Height       int    `mapstructure:"height" yaml:"height"`
	Facing       string `mapstructure:"facing" yaml:"facing"`
}

type Camera struct {
	Driver   string `mapstructure:"driver" yaml:"driver"` // ffmpeg | file
	Device   string `mapstructure:"device" yaml:"device"`
	File     string `mapstructure:"file" yaml:"file"`
	FFmpeg   string `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	LockPath string `mapstructure:"lock_path" yaml:"lock_path"`
}

type Supervisor struct {
	SettleMillis      int    `mapstructure:"settle_ms" yaml:"settle_ms"`
	StopConfirmMillis int    `mapstructure:"stop_confirm_ms" yaml:"stop_confirm_ms"`
	StopRecoverMillis int    `mapstructure:"stop_recover_ms" yaml:"stop_recover_ms"`
	DebounceMillis    int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	DefaultHost       string `mapstructure:"default_host" yaml:"default_host"`
	DefaultPort       int    `mapstructure:"default_port" yaml:"default_port"`
}

type Department struct {
	ID   string `mapstructure:"id" yaml:"id" json:"id"`
	Name string `mapstructure:"name" yaml:"name" json:"name"`
}

// Batches are the selection options used when the backend cannot list them.
type Batches struct {
	FallbackYears       []string     `mapstructure:"fallback_years" yaml:"fallback_years"`
	FallbackDepartments []Department `mapstructure:"fallback_departments" yaml:"fallback_departments"`
}

type Root struct {
	App struct {
		Name     string `mapstructure:"name" yaml:"name"`
		LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	} `mapstructure:"app" yaml:"app"`
	API        API        `mapstructure:"api" yaml:"api"`
	Recording  Recording  `mapstructure:"recording" yaml:"recording"`
	Camera     Camera     `mapstructure:"camera" yaml:"camera"`
	Supervisor Supervisor `mapstructure:"supervisor" yaml:"supervisor"`
	Batches    Batches    `mapstructure:"batches" yaml:"batches"`
	Paths      struct {
		Outputs string `mapstructure:"outputs" yaml:"outputs"`
		History string `mapstructure:"history" yaml:"history"`
	} `mapstructure:"paths" yaml:"paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "facecap")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("api.base_url", "http://localhost:5001/api")
	v.SetDefault("api.control_url", "")
	v.SetDefault("api.timeout_seconds", 120)

	v.SetDefault("recording.seconds", 8)
	v.SetDefault("recording.tick_ms", 1000)
	v.SetDefault("recording.status_ms", 2000)
	v.SetDefault("recording.width", 640)
	v.SetDefault("recording.height", 480)
	v.SetDefault("recording.facing", "user")

	v.SetDefault("camera.driver", "ffmpeg")
	v.SetDefault("camera.device", "/dev/video0")
	v.SetDefault("camera.file", "")
	v.SetDefault("camera.ffmpeg", "ffmpeg")
	v.SetDefault("camera.lock_path", filepath.Join(os.TempDir(), "facecap-camera.lock"))

	v.SetDefault("supervisor.settle_ms", 4000)
	v.SetDefault("supervisor.stop_confirm_ms", 2000)
	v.SetDefault("supervisor.stop_recover_ms", 1000)
	v.SetDefault("supervisor.debounce_ms", 1000)
	v.SetDefault("supervisor.default_host", "localhost")
	v.SetDefault("supervisor.default_port", 5001)

	v.SetDefault("batches.fallback_years", []string{})
	v.SetDefault("batches.fallback_departments", []Department{})

	v.SetDefault("paths.outputs", "")
	v.SetDefault("paths.history", filepath.Join("data", "history.db"))
}

// Load reads the config file at path, or when path is empty the first of
// config/<CONFIG_ENV>/config.yaml and src/shared/config.yaml that exists.
// A missing file is not an error: defaults and FACECAP_* env vars apply.
func Load(path string) (*Root, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess := []string{
			filepath.Join("config", env, "config.yaml"),
			filepath.Join("src", "shared", "config.yaml"),
		}
		for _, p := range guess {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Root) Validate() error {
	var errs []error
	if strings.TrimSpace(r.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if r.Recording.Seconds <= 0 {
		errs = append(errs, fmt.Errorf("recording.seconds must be positive, got %d", r.Recording.Seconds))
	}
	if r.Recording.TickMillis <= 0 {
		errs = append(errs, fmt.Errorf("recording.tick_ms must be positive, got %d", r.Recording.TickMillis))
	}
	if r.Recording.StatusMillis <= 0 {
		errs = append(errs, fmt.Errorf("recording.status_ms must be positive, got %d", r.Recording.StatusMillis))
	}
	switch r.Camera.Driver {
	case "ffmpeg":
	case "file":
		if r.Camera.File == "" {
			errs = append(errs, errors.New("camera.file is required for the file driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("camera.driver %q is not supported", r.Camera.Driver))
	}
	return errors.Join(errs...)
}

// Dump writes the effective configuration as YAML.
func Dump(w io.Writer, r *Root) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }

func DurMillis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
