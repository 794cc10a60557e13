package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvAccessToken    = "NOTEBOARD_ACCESS_TOKEN"
	EnvRemoteProvider = "NOTEBOARD_REMOTE_PROVIDER"
	EnvRemoteEndpoint = "NOTEBOARD_REMOTE_ENDPOINT"
	EnvRemotePassword = "NOTEBOARD_REMOTE_PASSWORD"
	EnvDebug          = "NOTEBOARD_DEBUG"
)

// Remote holds settings for the remote file-storage mirror.
type Remote struct {
	// Provider selects the gateway implementation: "drive", "webdav", "s3" or "memory".
	// Empty means the board runs offline only.
	Provider string `json:"provider,omitempty"`

	// Endpoint is the base URL of the provider API (Drive-style REST root or WebDAV root).
	// For s3 it is an optional custom endpoint (S3-compatible stores).
	Endpoint string `json:"endpoint,omitempty"`

	// FolderName is the dedicated remote folder that holds note files.
	FolderName string `json:"folder_name,omitempty"`

	// User and Password are used by providers with basic auth (webdav).
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`

	// Bucket, Region, AccessKeyID and SecretAccessKey configure the s3 provider.
	Bucket          string `json:"bucket,omitempty"`
	Region          string `json:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`

	// AccessToken is a pre-issued bearer token. Prefer NOTEBOARD_ACCESS_TOKEN in .env.
	AccessToken string `json:"access_token,omitempty"`

	// TokenTTLMinutes is the session lifetime assumed for tokens without an exp claim.
	TokenTTLMinutes int `json:"token_ttl_minutes,omitempty"`

	// RateLimit caps remote requests per second. 0 disables throttling.
	RateLimit float64 `json:"rate_limit,omitempty"`
}

// Config holds application configuration.
type Config struct {
	Remote Remote `json:"remote"`

	// CheckpointEvery is how many successful uploads pass between local checkpoints.
	CheckpointEvery int `json:"checkpoint_every"`

	// SyncConcurrency bounds parallel remote calls within a sync phase. 1 is sequential.
	SyncConcurrency int `json:"sync_concurrency"`

	// AutoPush uploads a note right after it is saved, when a session is available.
	AutoPush bool `json:"auto_push,omitempty"`

	// SyncSchedule is a cron spec (e.g. "@every 15m") used by `noteboard serve`.
	SyncSchedule string `json:"sync_schedule,omitempty"`

	// ShareBaseURL is the page that accepts ?view=<id> share links.
	ShareBaseURL string `json:"share_base_url,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFile enables a rotating log file. Relative paths are resolved against the base dir.
	LogFile string `json:"log_file,omitempty"`

	// AllowedPaths is an allowlist of directories for export.
	// Paths outside ~/.noteboard/exports require either being in this list or AllowUnsafePaths=true.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export.
	// Symlink checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups ("note", "folder", "sync") to disable entirely.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Remote: Remote{
			FolderName:      "Vinotes",
			TokenTTLMinutes: 60,
		},
		CheckpointEvery: 3,
		SyncConcurrency: 1,
		LogLevel:        "info",
	}
}

// Load loads configuration from baseDir/config.json, then baseDir/.env and the process
// environment. Returns default config if neither file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.noteboard.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}

	// .env never overrides variables already set in the environment
	envPath := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, err
		}
	}

	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvAccessToken); v != "" {
		cfg.Remote.AccessToken = v
	}
	if v := os.Getenv(EnvRemoteProvider); v != "" {
		cfg.Remote.Provider = v
	}
	if v := os.Getenv(EnvRemoteEndpoint); v != "" {
		cfg.Remote.Endpoint = v
	}
	if v := os.Getenv(EnvRemotePassword); v != "" {
		cfg.Remote.Password = v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvDebug)); err == nil && v {
		cfg.LogLevel = "debug"
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Remote = mergeRemote(base.Remote, overlay.Remote)

	// Scalars: overlay wins if non-zero, else base
	result.CheckpointEvery = pickInt(overlay.CheckpointEvery, base.CheckpointEvery)
	result.SyncConcurrency = pickInt(overlay.SyncConcurrency, base.SyncConcurrency)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.SyncSchedule = pickString(overlay.SyncSchedule, base.SyncSchedule)
	result.ShareBaseURL = pickString(overlay.ShareBaseURL, base.ShareBaseURL)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFile = pickString(overlay.LogFile, base.LogFile)

	// Booleans: overlay wins if true, else base
	result.AutoPush = base.AutoPush || overlay.AutoPush
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func mergeRemote(base, overlay Remote) Remote {
	r := Remote{
		Provider:        pickString(overlay.Provider, base.Provider),
		Endpoint:        pickString(overlay.Endpoint, base.Endpoint),
		FolderName:      pickString(overlay.FolderName, base.FolderName),
		User:            pickString(overlay.User, base.User),
		Password:        pickString(overlay.Password, base.Password),
		Bucket:          pickString(overlay.Bucket, base.Bucket),
		Region:          pickString(overlay.Region, base.Region),
		AccessKeyID:     pickString(overlay.AccessKeyID, base.AccessKeyID),
		SecretAccessKey: pickString(overlay.SecretAccessKey, base.SecretAccessKey),
		AccessToken:     pickString(overlay.AccessToken, base.AccessToken),
		TokenTTLMinutes: pickInt(overlay.TokenTTLMinutes, base.TokenTTLMinutes),
		RateLimit:       overlay.RateLimit,
	}
	if r.RateLimit == 0 {
		r.RateLimit = base.RateLimit
	}
	return r
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
