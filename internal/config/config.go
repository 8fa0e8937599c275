// Package config loads client and relay settings. Priority, highest first:
// command-line flags, LIVECLASS_* environment variables, a .env file, an
// optional config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BioHazard786/liveclass/internal/classroom"
	"github.com/BioHazard786/liveclass/internal/peer"
	"github.com/BioHazard786/liveclass/internal/wire"
)

// Default configuration values (production)
const (
	DefaultRelayURL = "wss://liveclass.qzz.io/ws"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:liveclass.qzz.io"
	DefaultTURNUser = "liveclass"
	DefaultTURNPass = "liveclass-secret"

	DefaultAddr        = ":8080"
	DefaultMaxRoomSize = 16
	DefaultReadLimit   = 64 * 1024

	EnvPrefix = "LIVECLASS"
)

// Keys shared by flags, environment and config files.
const (
	KeyRelay       = "relay"
	KeyCodec       = "codec"
	KeySTUN        = "stun"
	KeyTURN        = "turn"
	KeyTURNUser    = "turn-user"
	KeyTURNPass    = "turn-pass"
	KeyForceRelay  = "force-relay"
	KeyName        = "name"
	KeyRole        = "role"
	KeyDNSFallback = "dns-fallback"
	KeyConfigFile  = "config"

	KeyAddr           = "addr"
	KeyAllowedOrigins = "allowed-origins"
	KeyMaxRoomSize    = "max-room-size"
	KeyReadLimit      = "read-limit"
)

// Config holds the participant client's settings.
type Config struct {
	RelayURL string
	Codec    string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	Name string
	Role classroom.Role

	// DNSFallback retries relay lookups against public resolvers.
	DNSFallback bool
}

// RelayConfig holds the signaling relay's settings.
type RelayConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxRoomSize    int
	ReadLimit      int64
}

// Loader reads layered settings. Flags are bound with BindFlags.
type Loader struct {
	v       *viper.Viper
	envFile string
}

func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, envFile: ".env"}
}

// WithEnvFile changes the dotenv file read before the environment.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// BindFlags lets changed flags override every other source.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	return l.v.BindPFlags(flags)
}

func (l *Loader) read() error {
	// load .env if it exists (ignore if it does not)
	if l.envFile != "" {
		if _, err := os.Stat(l.envFile); err == nil {
			if err := godotenv.Load(l.envFile); err != nil {
				return fmt.Errorf("load %s: %w", l.envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", l.envFile, err)
		}
	}

	if file := l.v.GetString(KeyConfigFile); file != "" {
		l.v.SetConfigFile(file)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return nil
}

// Load reads the client configuration.
func (l *Loader) Load() (*Config, error) {
	v := l.v
	v.SetDefault(KeyRelay, DefaultRelayURL)
	v.SetDefault(KeyCodec, wire.CodecJSON)
	v.SetDefault(KeySTUN, DefaultSTUN)
	v.SetDefault(KeyTURN, DefaultTURN)
	v.SetDefault(KeyTURNUser, DefaultTURNUser)
	v.SetDefault(KeyTURNPass, DefaultTURNPass)
	v.SetDefault(KeyRole, string(classroom.RoleStudent))
	v.SetDefault(KeyDNSFallback, true)

	if err := l.read(); err != nil {
		return nil, err
	}

	cfg := &Config{
		RelayURL:    v.GetString(KeyRelay),
		Codec:       v.GetString(KeyCodec),
		STUNServer:  v.GetString(KeySTUN),
		TURNServer:  v.GetString(KeyTURN),
		TURNUser:    v.GetString(KeyTURNUser),
		TURNPass:    v.GetString(KeyTURNPass),
		ForceRelay:  v.GetBool(KeyForceRelay),
		Name:        v.GetString(KeyName),
		Role:        classroom.ParseRole(v.GetString(KeyRole)),
		DNSFallback: v.GetBool(KeyDNSFallback),
	}
	if _, err := wire.CodecByName(cfg.Codec); err != nil {
		return nil, err
	}
	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

// LoadRelay reads the relay configuration.
func (l *Loader) LoadRelay() (*RelayConfig, error) {
	v := l.v
	v.SetDefault(KeyAddr, DefaultAddr)
	v.SetDefault(KeyMaxRoomSize, DefaultMaxRoomSize)
	v.SetDefault(KeyReadLimit, DefaultReadLimit)

	if err := l.read(); err != nil {
		return nil, err
	}

	cfg := &RelayConfig{
		Addr:           v.GetString(KeyAddr),
		AllowedOrigins: splitList(v.GetStringSlice(KeyAllowedOrigins)),
		MaxRoomSize:    v.GetInt(KeyMaxRoomSize),
		ReadLimit:      v.GetInt64(KeyReadLimit),
	}
	if cfg.MaxRoomSize < 0 {
		return nil, fmt.Errorf("max room size must not be negative, got %d", cfg.MaxRoomSize)
	}
	if cfg.ReadLimit <= 0 {
		return nil, fmt.Errorf("read limit must be positive, got %d", cfg.ReadLimit)
	}
	return cfg, nil
}

// splitList accepts both repeated values and a single comma-separated one.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured. A bare host is
// expanded to the usual udp, tcp and tls endpoints.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?transport=") {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// ICE returns the connection settings for the pion factory.
func (c *Config) ICE() peer.ICEConfig {
	return peer.ICEConfig{
		STUN:       c.GetSTUNServers(),
		TURN:       c.GetTURNServers(),
		TURNUser:   c.TURNUser,
		TURNPass:   c.TURNPass,
		ForceRelay: c.ForceRelay,
	}
}
