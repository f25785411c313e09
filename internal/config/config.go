// Package config loads migration settings from portage.yaml with
// PORTAGE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults applied when a key is absent from both file and environment.
const (
	DefaultBatchSize = 1000
	DefaultCharset   = "windows-1252"
)

// Config is everything a migration run needs. DSNs are required, the rest
// has workable defaults.
type Config struct {
	// SourceDSN is the MySQL DSN of the legacy forum database.
	SourceDSN string
	// SourcePrefix is prepended to every legacy table name ("vb_" etc).
	SourcePrefix string
	// SourceCharset names the encoding legacy text is stored in.
	SourceCharset string

	// TargetDSN is the PostgreSQL DSN of the destination database.
	TargetDSN string

	BatchSize int

	// AttachmentsDir is the directory holding legacy attachment payloads.
	AttachmentsDir string
	// UploadsDir and UploadsBaseURL configure the local upload store. An
	// empty UploadsDir disables attachment and avatar migration.
	UploadsDir     string
	UploadsBaseURL string

	// SystemUserID owns content whose author cannot be mapped.
	SystemUserID int64

	// BBCodeToMarkdown switches list handling from markdown bullets to
	// canonical bbcode tags for a downstream converter.
	BBCodeToMarkdown bool

	Verbose bool
}

// Load reads path (or ./portage.yaml when path is empty), applies
// environment overrides and validates the result. A missing file is fine
// as long as the environment carries the required keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("portage")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PORTAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("source.charset", DefaultCharset)
	v.SetDefault("system_user_id", -1)
	v.SetDefault("uploads.base_url", "/uploads")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		SourceDSN:        v.GetString("source.dsn"),
		SourcePrefix:     v.GetString("source.prefix"),
		SourceCharset:    v.GetString("source.charset"),
		TargetDSN:        v.GetString("target.dsn"),
		BatchSize:        v.GetInt("batch_size"),
		AttachmentsDir:   v.GetString("attachments_dir"),
		UploadsDir:       v.GetString("uploads.dir"),
		UploadsBaseURL:   v.GetString("uploads.base_url"),
		SystemUserID:     v.GetInt64("system_user_id"),
		BBCodeToMarkdown: v.GetBool("markup.bbcode_converter"),
		Verbose:          v.GetBool("verbose"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var issues []string
	if c.SourceDSN == "" {
		issues = append(issues, "source.dsn is required")
	}
	if c.TargetDSN == "" {
		issues = append(issues, "target.dsn is required")
	}
	if c.BatchSize <= 0 {
		issues = append(issues, fmt.Sprintf("batch_size: %d is invalid (must be positive)", c.BatchSize))
	}
	if c.AttachmentsDir != "" && c.UploadsDir == "" {
		issues = append(issues, "uploads.dir: required when attachments_dir is set")
	}
	if len(issues) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(issues, "; "))
	}
	return nil
}
