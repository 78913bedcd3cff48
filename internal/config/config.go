package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FRAME_VIEWER_CACHE_DIR
const EnvPrefix = "FRAME_VIEWER"

// Config represents the entire application configuration
type Config struct {
	Remote   RemoteConfig   `mapstructure:"remote"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RemoteConfig contains the records API settings
type RemoteConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	MediaCollection string `mapstructure:"media_collection"`
	AuthCollection  string `mapstructure:"auth_collection"`
	PerPage         int    `mapstructure:"per_page"`
	RequestTimeout  string `mapstructure:"request_timeout"`
	SkipTLSVerify   bool   `mapstructure:"skip_tls_verify"`
}

// AuthConfig contains device identity and credentials
type AuthConfig struct {
	DeviceID     string `mapstructure:"device_id"`
	DeviceAPIKey string `mapstructure:"device_api_key"`
	Token        string `mapstructure:"token"`
	Email        string `mapstructure:"email"`
	Password     string `mapstructure:"password"`
}

// PlaybackConfig contains slideshow settings
type PlaybackConfig struct {
	Interval             string `mapstructure:"interval"`
	Transition           string `mapstructure:"transition"`
	TransitionDuration   string `mapstructure:"transition_duration"`
	VideoLoopThreshold   string `mapstructure:"video_loop_threshold"`
	Shuffle              bool   `mapstructure:"shuffle"`
	FullSyncOnStartup    bool   `mapstructure:"full_sync_on_startup"`
	PreloadAhead         int    `mapstructure:"preload_ahead"`
	StartupPreload       int    `mapstructure:"startup_preload"`
	FrameInterval        string `mapstructure:"frame_interval"`
	StartupFetchAttempts int    `mapstructure:"startup_fetch_attempts"`
}

// CacheConfig contains asset cache settings
type CacheConfig struct {
	Dir             string `mapstructure:"dir"`
	MaxSize         string `mapstructure:"max_size"`
	RecencyDB       string `mapstructure:"recency_db"`
	FlushInterval   string `mapstructure:"flush_interval"`
	TempFileMaxAge  string `mapstructure:"temp_file_max_age"`
	CleanupInterval string `mapstructure:"cleanup_interval"`
}

// SyncConfig contains realtime and refresh settings
type SyncConfig struct {
	RealtimeEnabled    bool   `mapstructure:"realtime_enabled"`
	ReconnectDelay     string `mapstructure:"reconnect_delay"`
	EventBuffer        int    `mapstructure:"event_buffer"`
	RefreshInterval    string `mapstructure:"refresh_interval"`
	MinRefreshInterval string `mapstructure:"min_refresh_interval"`
}

// WorkersConfig contains background task settings
type WorkersConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr      string `mapstructure:"bind_addr"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	ReadTimeout   string `mapstructure:"read_timeout"`
	WriteTimeout  string `mapstructure:"write_timeout"`
	IdleTimeout   string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Loader reads configuration from a file, .env and the environment, and
// can watch the file for changes
type Loader struct {
	v        *viper.Viper
	path     string
	envFiles []string
}

// NewLoader creates a loader. An empty path searches ./config.yaml and
// /etc/frame-viewer/config.yaml and tolerates neither existing.
func NewLoader(configPath string, envFiles ...string) *Loader {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("remote.base_url", EnvPrefix+"_REMOTE_BASE_URL", "POCKETBASE_URL")

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/frame-viewer")
	}

	return &Loader{v: v, path: configPath, envFiles: envFiles}
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.base_url", "http://localhost:8090")
	v.SetDefault("remote.media_collection", "media")
	v.SetDefault("remote.auth_collection", "users")
	v.SetDefault("remote.per_page", 500)
	v.SetDefault("remote.request_timeout", "30s")
	v.SetDefault("remote.skip_tls_verify", false)
	v.SetDefault("auth.device_id", "")
	v.SetDefault("auth.device_api_key", "")
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.email", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("playback.interval", "8s")
	v.SetDefault("playback.transition", "fade")
	v.SetDefault("playback.transition_duration", "1s")
	v.SetDefault("playback.video_loop_threshold", "30s")
	v.SetDefault("playback.shuffle", false)
	v.SetDefault("playback.full_sync_on_startup", false)
	v.SetDefault("playback.preload_ahead", 2)
	v.SetDefault("playback.startup_preload", 3)
	v.SetDefault("playback.frame_interval", "16ms")
	v.SetDefault("playback.startup_fetch_attempts", 5)
	v.SetDefault("cache.dir", "/var/cache/frame-viewer")
	v.SetDefault("cache.max_size", "10GB")
	v.SetDefault("cache.recency_db", "")
	v.SetDefault("cache.flush_interval", "30s")
	v.SetDefault("cache.temp_file_max_age", "24h")
	v.SetDefault("cache.cleanup_interval", "1h")
	v.SetDefault("sync.realtime_enabled", true)
	v.SetDefault("sync.reconnect_delay", "5s")
	v.SetDefault("sync.event_buffer", 100)
	v.SetDefault("sync.refresh_interval", "10m")
	v.SetDefault("sync.min_refresh_interval", "2s")
	v.SetDefault("workers.concurrency", 2)
	v.SetDefault("http.bind_addr", "127.0.0.1:8080")
	v.SetDefault("http.admin_username", "admin")
	v.SetDefault("http.admin_password", "")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", true)
}

// Load reads .env, the config file and the environment, then validates
func (l *Loader) Load() (*Config, error) {
	for _, f := range l.envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ConfigFile returns the file in use, "" when running on defaults
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the re-read configuration whenever the config
// file changes. Invalid edits are reported through err and otherwise ignored.
func (l *Loader) Watch(onChange func(cfg *Config, err error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(l.decode())
	})
	l.v.WatchConfig()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote.base_url must be an http(s) URL, got %q", c.Remote.BaseURL)
	}
	if c.Remote.MediaCollection == "" {
		return fmt.Errorf("remote.media_collection is required")
	}
	if c.Remote.PerPage < 1 || c.Remote.PerPage > 1000 {
		return fmt.Errorf("remote.per_page must be between 1 and 1000")
	}
	if c.Auth.Email != "" && c.Auth.Password == "" {
		return fmt.Errorf("auth.password is required when auth.email is set")
	}

	switch strings.ToLower(c.Playback.Transition) {
	case "cut", "fade", "crossfade":
	default:
		return fmt.Errorf("invalid playback.transition: %s", c.Playback.Transition)
	}
	if c.Playback.PreloadAhead < 0 || c.Playback.StartupPreload < 0 {
		return fmt.Errorf("playback preload counts must not be negative")
	}

	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if _, err := c.Cache.GetMaxSizeBytes(); err != nil {
		return err
	}

	if c.Workers.Concurrency < 1 || c.Workers.Concurrency > 16 {
		return fmt.Errorf("workers.concurrency must be between 1 and 16")
	}

	durations := map[string]string{
		"remote.request_timeout":        c.Remote.RequestTimeout,
		"playback.interval":             c.Playback.Interval,
		"playback.transition_duration":  c.Playback.TransitionDuration,
		"playback.video_loop_threshold": c.Playback.VideoLoopThreshold,
		"playback.frame_interval":       c.Playback.FrameInterval,
		"cache.flush_interval":          c.Cache.FlushInterval,
		"cache.temp_file_max_age":       c.Cache.TempFileMaxAge,
		"cache.cleanup_interval":        c.Cache.CleanupInterval,
		"sync.reconnect_delay":          c.Sync.ReconnectDelay,
		"sync.refresh_interval":         c.Sync.RefreshInterval,
		"sync.min_refresh_interval":     c.Sync.MinRefreshInterval,
		"http.read_timeout":             c.HTTP.ReadTimeout,
		"http.write_timeout":            c.HTTP.WriteTimeout,
		"http.idle_timeout":             c.HTTP.IdleTimeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		} else if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetRequestTimeout returns the per-request timeout of the records API
func (c *RemoteConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 30*time.Second)
}

// GetInterval returns the advance interval
func (c *PlaybackConfig) GetInterval() time.Duration {
	return parseDuration(c.Interval, 8*time.Second)
}

// GetTransitionDuration returns the full transition duration. Zero is allowed.
func (c *PlaybackConfig) GetTransitionDuration() time.Duration {
	d, err := time.ParseDuration(c.TransitionDuration)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// GetVideoLoopThreshold returns the duration below which videos loop
func (c *PlaybackConfig) GetVideoLoopThreshold() time.Duration {
	return parseDuration(c.VideoLoopThreshold, 30*time.Second)
}

// GetFrameInterval returns the render loop period
func (c *PlaybackConfig) GetFrameInterval() time.Duration {
	return parseDuration(c.FrameInterval, 16*time.Millisecond)
}

// GetMaxSizeBytes parses max_size, e.g. "10GB" or "512MiB"
func (c *CacheConfig) GetMaxSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid cache.max_size %q: %w", c.MaxSize, err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("cache.max_size must be positive, got %q", c.MaxSize)
	}
	return int64(n), nil
}

// GetRecencyDB returns the recency database path, inside the cache dir by default
func (c *CacheConfig) GetRecencyDB() string {
	if c.RecencyDB != "" {
		return c.RecencyDB
	}
	return filepath.Join(c.Dir, "recency.db")
}

// GetFlushInterval returns how often recency is persisted
func (c *CacheConfig) GetFlushInterval() time.Duration {
	return parseDuration(c.FlushInterval, 30*time.Second)
}

// GetTempFileMaxAge returns the age after which temp files are removed
func (c *CacheConfig) GetTempFileMaxAge() time.Duration {
	return parseDuration(c.TempFileMaxAge, 24*time.Hour)
}

// GetCleanupInterval returns how often stale temp files are swept
func (c *CacheConfig) GetCleanupInterval() time.Duration {
	return parseDuration(c.CleanupInterval, time.Hour)
}

// GetReconnectDelay returns the fixed realtime reconnect delay
func (c *SyncConfig) GetReconnectDelay() time.Duration {
	return parseDuration(c.ReconnectDelay, 5*time.Second)
}

// GetRefreshInterval returns the periodic refresh interval; zero disables it
func (c *SyncConfig) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d < 0 {
		return 10 * time.Minute
	}
	return d
}

// GetMinRefreshInterval returns the minimum spacing of triggered refreshes
func (c *SyncConfig) GetMinRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.MinRefreshInterval)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 30*time.Second)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}
