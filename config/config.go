package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel int `yaml:"log_level" env:"CLIPPER_LOG_LEVEL, overwrite"`

	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Clip    ClipConfig    `yaml:"clip"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

type FFmpegConfig struct {
	FFmpegPath   string `yaml:"ffmpeg_path" env:"CLIPPER_FFMPEG_PATH, overwrite"`
	FFprobePath  string `yaml:"ffprobe_path" env:"CLIPPER_FFPROBE_PATH, overwrite"`
	AudioBitrate string `yaml:"audio_bitrate" env:"CLIPPER_AUDIO_BITRATE, overwrite"`
}

type ClipConfig struct {
	// Seconds is the default window length
	Seconds int    `yaml:"seconds" env:"CLIPPER_CLIP_SECONDS, overwrite"`
	Artist  string `yaml:"artist" env:"CLIPPER_ARTIST, overwrite"`
}

type ServerConfig struct {
	Port        string        `yaml:"port" env:"CLIPPER_PORT, overwrite"`
	UploadDir   string        `yaml:"upload_dir" env:"CLIPPER_UPLOAD_DIR, overwrite"`
	OutputDir   string        `yaml:"output_dir" env:"CLIPPER_OUTPUT_DIR, overwrite"`
	MaxUploadMB int64         `yaml:"max_upload_mb" env:"CLIPPER_MAX_UPLOAD_MB, overwrite"`
	FileTTL     time.Duration `yaml:"file_ttl" env:"CLIPPER_FILE_TTL, overwrite"`
}

type StorageConfig struct {
	// Type of storage: "local", "gcs" or "s3"
	Type string `yaml:"type" env:"CLIPPER_STORAGE_TYPE, overwrite"`

	GCS GCSConfig `yaml:"gcs"`
	S3  S3Config  `yaml:"s3"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket" env:"CLIPPER_GCS_BUCKET, overwrite"`
	Prefix          string `yaml:"prefix" env:"CLIPPER_GCS_PREFIX, overwrite"`
	CredentialsFile string `yaml:"credentials_file" env:"CLIPPER_GCS_CREDENTIALS_FILE, overwrite"`
	PublicBaseURL   string `yaml:"public_base_url" env:"CLIPPER_GCS_PUBLIC_BASE_URL, overwrite"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket" env:"CLIPPER_S3_BUCKET, overwrite"`
	Region          string `yaml:"region" env:"CLIPPER_S3_REGION, overwrite"`
	Prefix          string `yaml:"prefix" env:"CLIPPER_S3_PREFIX, overwrite"`
	Endpoint        string `yaml:"endpoint" env:"CLIPPER_S3_ENDPOINT, overwrite"`
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID, overwrite"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY, overwrite"`
}

// Load reads the YAML file at path and applies CLIPPER_* environment
// overrides on top. An empty path yields the defaults plus the environment.
func Load(path string) (*Config, error) {
	return load(path, envconfig.OsLookuper())
}

func load(path string, lookuper envconfig.Lookuper) (*Config, error) {
	config := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		// Unmarshal the YAML data into the struct
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, err
		}
	}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   config,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	config.setDefaults()
	return config, nil
}

// Set defaults if not provided
func (c *Config) setDefaults() {
	if c.Clip.Seconds <= 0 {
		c.Clip.Seconds = 2
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}

	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}

	if c.Server.OutputDir == "" {
		c.Server.OutputDir = "output"
	}

	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 2048
	}

	if c.Server.FileTTL <= 0 {
		c.Server.FileTTL = 24 * time.Hour
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
}

// NewLogger returns a logger at the configured level. The server logs JSON,
// the CLI logs text.
func (c *Config) NewLogger(json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.Level(c.LogLevel)}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
