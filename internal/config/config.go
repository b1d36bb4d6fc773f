package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"lyricsync/internal/engine"
	"lyricsync/internal/pitch"
	"lyricsync/internal/transport"
	"lyricsync/internal/window"
)

const (
	DefaultSocketPath   = "/tmp/lyricsync.sock"
	DefaultPollInterval = 50 * time.Millisecond
	DefaultStatusFile   = "/tmp/lyrics"
	DefaultRedisTTL     = 30 * 24 * time.Hour
	DefaultLogLevel     = "info"
)

// 环境变量，优先级高于配置文件
const (
	EnvConfigPath    = "LYRICSYNC_CONFIG"
	EnvSocketPath    = "LYRICSYNC_SOCKET"
	EnvMetadataDir   = "LYRICSYNC_METADATA_DIR"
	EnvLogLevel      = "LYRICSYNC_LOG_LEVEL"
	EnvRedisAddr     = "LYRICSYNC_REDIS_ADDR"
	EnvRedisPassword = "LYRICSYNC_REDIS_PASSWORD"
)

func getDefaultDataDir() string {
	// 优先使用 XDG_DATA_HOME 环境变量
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "lyricsync")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "lyricsync_data"
	}

	return filepath.Join(homeDir, ".local", "share", "lyricsync")
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath   string `toml:"socket_path"`
		PollInterval string `toml:"poll_interval"`
		MetadataDir  string `toml:"metadata_dir"`
		AliasFile    string `toml:"alias_file"`
		StatusFile   string `toml:"status_file"`
		LogLevel     string `toml:"log_level"`
	} `toml:"app"`

	Window struct {
		Mode       string `toml:"mode"`
		BlockSize  int    `toml:"block_size"`
		WindowSize int    `toml:"window_size"`
		Step       int    `toml:"step"`
		BreakEvery int    `toml:"break_every"`
	} `toml:"window"`

	Pitch struct {
		MinHz float64 `toml:"min_hz"`
		MaxHz float64 `toml:"max_hz"`
	} `toml:"pitch"`

	Transport struct {
		Skip        string `toml:"skip"`
		ResumeDelay string `toml:"resume_delay"`
	} `toml:"transport"`

	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		TTL      string `toml:"ttl"`
	} `toml:"redis"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath   string
	PollInterval time.Duration
	MetadataDir  string
	AliasFile    string
	StatusFile   string
	LogLevel     string
}

// PitchConfig 音高条范围
type PitchConfig struct {
	MinHz float64
	MaxHz float64
}

// TransportConfig 播放控制
type TransportConfig struct {
	Skip        time.Duration
	ResumeDelay time.Duration
}

// RedisConfig Redis配置，Addr 为空表示不使用缓存
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Config 主配置结构
type Config struct {
	App       AppConfig
	Window    window.Options
	Pitch     PitchConfig
	Transport TransportConfig
	Redis     RedisConfig
}

// Default 默认配置
func Default() *Config {
	dataDir := getDefaultDataDir()
	return &Config{
		App: AppConfig{
			SocketPath:   DefaultSocketPath,
			PollInterval: DefaultPollInterval,
			MetadataDir:  filepath.Join(dataDir, "songs"),
			AliasFile:    filepath.Join(dataDir, "aliases"),
			StatusFile:   DefaultStatusFile,
			LogLevel:     DefaultLogLevel,
		},
		Window: window.DefaultOptions(),
		Pitch:  PitchConfig{
			MinHz: pitch.DefaultMinHz,
			MaxHz: pitch.DefaultMaxHz,
		},
		Transport: TransportConfig{
			Skip:        transport.DefaultSkip,
			ResumeDelay: transport.DefaultResumeDelay,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  DefaultRedisTTL,
		},
	}
}

// Path 获取配置文件路径
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "lyricsync", "config.toml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml"
	}

	return filepath.Join(homeDir, ".config", "lyricsync", "config.toml")
}

// loadTomlConfig 加载TOML配置文件，文件不存在时返回空配置
func loadTomlConfig(path string) (*TomlConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("Config file not found, using defaults")
		return &TomlConfig{}, nil
	}

	var tc TomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Loaded config")
	return &tc, nil
}

// Load 读取 .env 与默认路径的配置文件。出错时退回默认配置。
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env")
	}

	cfg, err := LoadFile(Path())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config file, using default configuration")
		cfg = Default()
		cfg.applyEnv()
	}
	return cfg
}

// LoadFile 默认值 < 配置文件 < 环境变量
func LoadFile(path string) (*Config, error) {
	tc, err := loadTomlConfig(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.apply(tc)
	cfg.applyEnv()

	if _, err := window.New(cfg.Window); err != nil {
		return nil, fmt.Errorf("invalid [window] section: %w", err)
	}
	if cfg.Pitch.MaxHz <= cfg.Pitch.MinHz {
		return nil, fmt.Errorf("invalid [pitch] section: max_hz %.1f must be greater than min_hz %.1f",
			cfg.Pitch.MaxHz, cfg.Pitch.MinHz)
	}
	return cfg, nil
}

func (c *Config) apply(tc *TomlConfig) {
	// App
	if tc.App.SocketPath != "" {
		c.App.SocketPath = tc.App.SocketPath
	}
	setDuration(&c.App.PollInterval, tc.App.PollInterval, "app.poll_interval")
	if tc.App.MetadataDir != "" {
		c.App.MetadataDir = expandHome(tc.App.MetadataDir)
	}
	if tc.App.AliasFile != "" {
		c.App.AliasFile = expandHome(tc.App.AliasFile)
	}
	if tc.App.StatusFile != "" {
		c.App.StatusFile = expandHome(tc.App.StatusFile)
	}
	if tc.App.LogLevel != "" {
		c.App.LogLevel = tc.App.LogLevel
	}

	// Window
	if tc.Window.Mode != "" {
		c.Window.Mode = window.Mode(strings.ToLower(tc.Window.Mode))
	}
	if tc.Window.BlockSize != 0 {
		c.Window.BlockSize = tc.Window.BlockSize
	}
	if tc.Window.WindowSize != 0 {
		c.Window.WindowSize = tc.Window.WindowSize
	}
	if tc.Window.Step != 0 {
		c.Window.Step = tc.Window.Step
	}
	if tc.Window.BreakEvery != 0 {
		c.Window.BreakEvery = tc.Window.BreakEvery
	}

	// Pitch
	if tc.Pitch.MinHz != 0 {
		c.Pitch.MinHz = tc.Pitch.MinHz
	}
	if tc.Pitch.MaxHz != 0 {
		c.Pitch.MaxHz = tc.Pitch.MaxHz
	}

	// Transport
	setDuration(&c.Transport.Skip, tc.Transport.Skip, "transport.skip")
	setDuration(&c.Transport.ResumeDelay, tc.Transport.ResumeDelay, "transport.resume_delay")

	// Redis
	if tc.Redis.Addr != "" {
		c.Redis.Addr = tc.Redis.Addr
	}
	if tc.Redis.Password != "" {
		c.Redis.Password = tc.Redis.Password
	}
	if tc.Redis.DB != 0 {
		c.Redis.DB = tc.Redis.DB
	}
	setDuration(&c.Redis.TTL, tc.Redis.TTL, "redis.ttl")
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvSocketPath); ok && v != "" {
		c.App.SocketPath = v
	}
	if v, ok := os.LookupEnv(EnvMetadataDir); ok && v != "" {
		c.App.MetadataDir = expandHome(v)
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.App.LogLevel = v
	}
	// 允许设置为空字符串来关闭 redis
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		c.Redis.Addr = v
	}
	if v, ok := os.LookupEnv(EnvRedisPassword); ok {
		c.Redis.Password = v
	}
}

func setDuration(dst *time.Duration, raw, key string) {
	if raw == "" {
		return
	}
	d, err := parseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid duration format, using default")
		return
	}
	*dst = d
}

// parseDuration 支持 "50ms" 这样的写法，纯数字按毫秒处理
func parseDuration(raw string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %d", ms)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", raw)
	}
	return d, nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(homeDir, p[2:])
}

// Engine 转换为引擎参数
func (c *Config) Engine() engine.Config {
	ec := engine.DefaultConfig()
	ec.Window = c.Window
	ec.MinHz = c.Pitch.MinHz
	ec.MaxHz = c.Pitch.MaxHz
	ec.Skip = c.Transport.Skip
	ec.ResumeDelay = c.Transport.ResumeDelay
	return ec
}
