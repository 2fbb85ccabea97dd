// Package config loads the harvester configuration from json5 files.
// A sibling <name>.local.json5 overrides the checked-in file, so
// credentials stay out of version control.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/aspenlund/kbharvest/pkg/archive"
	"github.com/aspenlund/kbharvest/pkg/utils"
)

type RetryConfig struct {
	Attempts     int `json:"attempts"`
	DelaySeconds int `json:"delay_seconds"`
}

type DriveConfig struct {
	Token      string `json:"token"`
	RootFolder string `json:"root_folder"`
	ShareWith  string `json:"share_with"`
}

type Config struct {
	ArchiveBase string      `json:"archive_base"`
	APIBase     string      `json:"api_base"`
	DownloadDir string      `json:"download_dir"`
	LedgerPath  string      `json:"ledger_path"`
	Headless    *bool       `json:"headless"`
	Retry       RetryConfig `json:"retry"`
	Drive       DriveConfig `json:"drive"`
}

// Load reads path and its .local override. A missing file is not an
// error; defaults cover everything except the Drive token.
func Load(path string) (Config, error) {
	var cfg Config

	if err := readInto(path, &cfg); err != nil {
		return cfg, err
	}

	ext := filepath.Ext(path)
	localPath := strings.TrimSuffix(path, ext) + ".local" + ext
	var local Config
	if err := readInto(localPath, &local); err != nil {
		return cfg, err
	}
	if err := mergo.Merge(&cfg, local, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("merge local config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func readInto(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json5.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ArchiveBase == "" {
		c.ArchiveBase = archive.DefaultBaseURL
	}
	if c.APIBase == "" {
		c.APIBase = archive.DefaultAPIBase
	}
	if c.DownloadDir == "" {
		c.DownloadDir = "kb_newspapers"
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "kbharvest.db"
	}
	if c.Headless == nil {
		headless := true
		c.Headless = &headless
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.DelaySeconds == 0 {
		c.Retry.DelaySeconds = 2
	}
	if c.Drive.RootFolder == "" {
		c.Drive.RootFolder = "KB_Newspapers"
	}
}

// RetryPolicy builds the shared download/upload retry policy.
func (c Config) RetryPolicy() utils.RetryPolicy {
	return utils.RetryPolicy{
		MaxAttempts:   c.Retry.Attempts,
		BaseDelay:     time.Duration(c.Retry.DelaySeconds) * time.Second,
		BackoffFactor: 1,
	}
}
