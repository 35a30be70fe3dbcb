package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the settings playpresence reads at startup.
type Config struct {
	// LogPath is the release service log.
	LogPath string
	// DevLogPath is the developer emulator service log.
	DevLogPath    string
	ApplicationID string

	LogLevel    string
	LogFile     string
	FileLogging bool

	WaitForFile     time.Duration
	DirectoryPoll   time.Duration
	Recheck         time.Duration
	PresenceRefresh time.Duration

	LookupBaseURL   string
	LookupCacheSize int
	DetectableURL   string
}

const (
	defaultConfigPath      = "~/.config/playpresence/config.toml"
	defaultLogFile         = "~/.local/share/playpresence/logs/playpresence.log"
	defaultApplicationID   = "1204167311922167860"
	defaultLogLevel        = "info"
	defaultWaitSeconds     = 5
	defaultDirPollSeconds  = 60
	defaultRecheckSeconds  = 30
	defaultRefreshSeconds  = 5
	defaultLookupBaseURL   = "https://play.google.com"
	defaultLookupCacheSize = 256
	defaultDetectableURL   = "https://discord.com/api/v9/games/detectable"

	releaseLogSuffix   = "Google/Play Games/Logs/Service.log"
	developerLogSuffix = "Google/Play Games Developer Emulator/Logs/Service.log"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogPath:         defaultServiceLog(releaseLogSuffix),
		DevLogPath:      defaultServiceLog(developerLogSuffix),
		ApplicationID:   defaultApplicationID,
		LogLevel:        defaultLogLevel,
		LogFile:         mustExpand(defaultLogFile),
		FileLogging:     true,
		WaitForFile:     defaultWaitSeconds * time.Second,
		DirectoryPoll:   defaultDirPollSeconds * time.Second,
		Recheck:         defaultRecheckSeconds * time.Second,
		PresenceRefresh: defaultRefreshSeconds * time.Second,
		LookupBaseURL:   defaultLookupBaseURL,
		LookupCacheSize: defaultLookupCacheSize,
		DetectableURL:   defaultDetectableURL,
	}
}

// Load parses the config at path, falling back to defaults when the file is
// missing or a value is left empty.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		LogPath         string `toml:"log_path"`
		DevLogPath      string `toml:"dev_log_path"`
		ApplicationID   string `toml:"application_id"`
		LogLevel        string `toml:"log_level"`
		LogFile         string `toml:"log_file"`
		FileLogging     *bool  `toml:"file_logging"`
		WaitForFile     int    `toml:"wait_for_file_seconds"`
		DirectoryPoll   int    `toml:"directory_poll_seconds"`
		Recheck         *int   `toml:"recheck_seconds"`
		PresenceRefresh int    `toml:"presence_refresh_seconds"`
		LookupBaseURL   string `toml:"lookup_base_url"`
		LookupCacheSize int    `toml:"lookup_cache_size"`
		DetectableURL   string `toml:"detectable_url"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.LogPath); v != "" {
		cfg.LogPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.DevLogPath); v != "" {
		cfg.DevLogPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.ApplicationID); v != "" {
		cfg.ApplicationID = v
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if raw.FileLogging != nil {
		cfg.FileLogging = *raw.FileLogging
	}
	if raw.WaitForFile > 0 {
		cfg.WaitForFile = time.Duration(raw.WaitForFile) * time.Second
	}
	if raw.DirectoryPoll > 0 {
		cfg.DirectoryPoll = time.Duration(raw.DirectoryPoll) * time.Second
	}
	if raw.Recheck != nil && *raw.Recheck >= 0 {
		// Zero turns the periodic recheck off.
		cfg.Recheck = time.Duration(*raw.Recheck) * time.Second
	}
	if raw.PresenceRefresh > 0 {
		cfg.PresenceRefresh = time.Duration(raw.PresenceRefresh) * time.Second
	}
	if v := strings.TrimSpace(raw.LookupBaseURL); v != "" {
		cfg.LookupBaseURL = strings.TrimRight(v, "/")
	}
	if raw.LookupCacheSize > 0 {
		cfg.LookupCacheSize = raw.LookupCacheSize
	}
	if v := strings.TrimSpace(raw.DetectableURL); v != "" {
		cfg.DetectableURL = v
	}

	return cfg, nil
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// defaultServiceLog places suffix under the local application data directory.
func defaultServiceLog(suffix string) string {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return filepath.FromSlash(suffix)
		}
		base = dir
	}
	return filepath.Join(base, filepath.FromSlash(suffix))
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
