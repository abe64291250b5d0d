// Package config loads server configuration from an optional YAML file and
// RIFTBOUND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload" // .env is loaded before viper reads the environment
	"github.com/spf13/viper"

	"github.com/Miszion/riftbound-online-backend/internal/game"
	"github.com/Miszion/riftbound-online-backend/internal/matchmaking"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RIFTBOUND"

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Rules       RulesConfig       `mapstructure:"rules"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

type ServerConfig struct {
	HTTP             HTTPConfig      `mapstructure:"http"`
	GRPC             GRPCConfig      `mapstructure:"grpc"`
	WebSocket        WebSocketConfig `mapstructure:"websocket"`
	ShutdownTimeout  time.Duration   `mapstructure:"shutdown_timeout"`
	DeadlineInterval time.Duration   `mapstructure:"deadline_interval"`
}

type HTTPConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type GRPCConfig struct {
	Address              string        `mapstructure:"address"`
	MaxConcurrentStreams int           `mapstructure:"max_concurrent_streams"`
	KeepaliveTime        time.Duration `mapstructure:"keepalive_time"`
	KeepaliveTimeout     time.Duration `mapstructure:"keepalive_timeout"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	SendQueue       int           `mapstructure:"send_queue"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	Migrate         bool          `mapstructure:"migrate"`
}

type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	ChannelPrefix  string `mapstructure:"channel_prefix"`
	HistorianQueue string `mapstructure:"historian_queue"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RulesConfig mirrors game.Options.
type RulesConfig struct {
	OpeningHand       int           `mapstructure:"opening_hand"`
	MulliganLimit     int           `mapstructure:"mulligan_limit"`
	MainDeckMin       int           `mapstructure:"main_deck_min"`
	MainDeckMax       int           `mapstructure:"main_deck_max"`
	CopyLimit         int           `mapstructure:"copy_limit"`
	RuneDeckSize      int           `mapstructure:"rune_deck_size"`
	BattlefieldCount  int           `mapstructure:"battlefield_count"`
	SideDeckMax       int           `mapstructure:"side_deck_max"`
	ChannelPerTurn    int           `mapstructure:"channel_per_turn"`
	SecondPlayerBonus int           `mapstructure:"second_player_bonus"`
	VictoryScore      int           `mapstructure:"victory_score"`
	PriorityWindow    time.Duration `mapstructure:"priority_window"`
	SetupWindow       time.Duration `mapstructure:"setup_window"`
	HistoryLimit      int           `mapstructure:"history_limit"`
}

// Options converts the rules section for the engine.
func (r RulesConfig) Options() game.Options {
	return game.Options{
		OpeningHand:       r.OpeningHand,
		MulliganLimit:     r.MulliganLimit,
		MainDeckMin:       r.MainDeckMin,
		MainDeckMax:       r.MainDeckMax,
		CopyLimit:         r.CopyLimit,
		RuneDeckSize:      r.RuneDeckSize,
		BattlefieldCount:  r.BattlefieldCount,
		SideDeckMax:       r.SideDeckMax,
		ChannelPerTurn:    r.ChannelPerTurn,
		SecondPlayerBonus: r.SecondPlayerBonus,
		VictoryScore:      r.VictoryScore,
		PriorityWindow:    r.PriorityWindow,
		SetupWindow:       r.SetupWindow,
		HistoryLimit:      r.HistoryLimit,
	}
}

type MatchmakingConfig struct {
	Modes         []string               `mapstructure:"modes"`
	SweepInterval time.Duration          `mapstructure:"sweep_interval"`
	MatchedTTL    time.Duration          `mapstructure:"matched_ttl"`
	BaseTolerance int                    `mapstructure:"base_tolerance"`
	MaxTolerance  int                    `mapstructure:"max_tolerance"`
	FlexSteps     []matchmaking.FlexStep `mapstructure:"flex_steps"`
}

// Policy returns the tolerance policy for the coordinator.
func (m MatchmakingConfig) Policy() matchmaking.TolerancePolicy {
	p := matchmaking.TolerancePolicy{
		Base:  m.BaseTolerance,
		Max:   m.MaxTolerance,
		Steps: m.FlexSteps,
	}
	if len(p.Steps) == 0 {
		p.Steps = matchmaking.DefaultTolerance().Steps
	}
	return p
}

// SyncConfig tunes the state synchronizer.
type SyncConfig struct {
	SnapshotQueue    int           `mapstructure:"snapshot_queue"`
	SnapshotRetries  uint          `mapstructure:"snapshot_retries"`
	SnapshotTimeout  time.Duration `mapstructure:"snapshot_timeout"`
	ResultMaxBackoff time.Duration `mapstructure:"result_max_backoff"`
	PublishTimeout   time.Duration `mapstructure:"publish_timeout"`
}

type CatalogConfig struct {
	// Path is an optional JSON card list; the built-in set is used when empty.
	Path string `mapstructure:"path"`
}

type TelemetryConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.read_timeout", 15*time.Second)
	v.SetDefault("server.http.write_timeout", 15*time.Second)
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.grpc.keepalive_time", 30*time.Second)
	v.SetDefault("server.grpc.keepalive_timeout", 10*time.Second)
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.send_queue", 64)
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.deadline_interval", time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "")
	v.SetDefault("redis.historian_queue", "riftbound:historian")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	opts := game.DefaultOptions()
	v.SetDefault("rules.opening_hand", opts.OpeningHand)
	v.SetDefault("rules.mulligan_limit", opts.MulliganLimit)
	v.SetDefault("rules.main_deck_min", opts.MainDeckMin)
	v.SetDefault("rules.main_deck_max", opts.MainDeckMax)
	v.SetDefault("rules.copy_limit", opts.CopyLimit)
	v.SetDefault("rules.rune_deck_size", opts.RuneDeckSize)
	v.SetDefault("rules.battlefield_count", opts.BattlefieldCount)
	v.SetDefault("rules.side_deck_max", opts.SideDeckMax)
	v.SetDefault("rules.channel_per_turn", opts.ChannelPerTurn)
	v.SetDefault("rules.second_player_bonus", opts.SecondPlayerBonus)
	v.SetDefault("rules.victory_score", opts.VictoryScore)
	v.SetDefault("rules.priority_window", opts.PriorityWindow)
	v.SetDefault("rules.setup_window", opts.SetupWindow)
	v.SetDefault("rules.history_limit", opts.HistoryLimit)

	tol := matchmaking.DefaultTolerance()
	v.SetDefault("matchmaking.modes", []string{"ranked", "casual"})
	v.SetDefault("matchmaking.sweep_interval", 2*time.Second)
	v.SetDefault("matchmaking.matched_ttl", 5*time.Minute)
	v.SetDefault("matchmaking.base_tolerance", tol.Base)
	v.SetDefault("matchmaking.max_tolerance", tol.Max)

	v.SetDefault("sync.snapshot_queue", 256)
	v.SetDefault("sync.snapshot_retries", 3)
	v.SetDefault("sync.snapshot_timeout", 5*time.Second)
	v.SetDefault("sync.result_max_backoff", 30*time.Second)
	v.SetDefault("sync.publish_timeout", 2*time.Second)

	v.SetDefault("catalog.path", "")

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.service_name", "riftbound-server")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Load reads path if it exists, then applies environment overrides such
// as RIFTBOUND_DATABASE_URL for database.url.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.HTTP.Address == "" {
		problems = append(problems, "server.http.address is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Rules.MainDeckMin <= 0 || c.Rules.MainDeckMax < c.Rules.MainDeckMin {
		problems = append(problems, "rules main deck bounds are inconsistent")
	}
	if c.Rules.OpeningHand <= 0 {
		problems = append(problems, "rules.opening_hand must be positive")
	}
	if c.Rules.PriorityWindow <= 0 || c.Rules.SetupWindow <= 0 {
		problems = append(problems, "rules windows must be positive")
	}
	if len(c.Matchmaking.Modes) == 0 {
		problems = append(problems, "matchmaking.modes must name at least one mode")
	}
	if c.Matchmaking.MaxTolerance > 0 && c.Matchmaking.MaxTolerance < c.Matchmaking.BaseTolerance {
		problems = append(problems, "matchmaking.max_tolerance is below base_tolerance")
	}
	if c.Sync.SnapshotQueue <= 0 {
		problems = append(problems, "sync.snapshot_queue must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
