// Package config loads the server configuration from a YAML file with
// sensible defaults for every field.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Server modes. A room server hosts games itself; a lobby server fronts a
// set of room servers and only keeps a roster and room list.
const (
	ModeRoom  = "room"
	ModeLobby = "lobby"
)

// Config holds the full server configuration.
type Config struct {
	Mode       string `mapstructure:"mode"`
	Addr       string `mapstructure:"addr"`
	ServerName string `mapstructure:"server_name"`
	Version    string `mapstructure:"version"`
	LogLevel   string `mapstructure:"log_level"`

	// ForbidSameIP rejects a second connection from an address that already
	// has a live session.
	ForbidSameIP bool     `mapstructure:"forbid_same_ip"`
	BannedIPs    []string `mapstructure:"banned_ips"`

	RoomPassword string `mapstructure:"room_password"`
	RoomName     string `mapstructure:"room_name"`
	RoomCapacity int    `mapstructure:"room_capacity"`
	GameMode     string `mapstructure:"game_mode"`

	// DiscoveryAddr enables the UDP LAN-discovery responder when non-empty.
	DiscoveryAddr string `mapstructure:"discovery_addr"`

	// RedisAddr selects the redis-backed persistent ban list when non-empty.
	RedisAddr string `mapstructure:"redis_addr"`
}

// Load reads the configuration file named by the GAMESERVER_CONFIG
// environment variable (config.yaml by default). A missing file is not an
// error; defaults apply.
//
// Returns:
//   - The loaded configuration, or an error if the file is unreadable or the
//     mode is invalid
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := os.Getenv("GAMESERVER_CONFIG")
	if fileName == "" {
		fileName = "config.yaml"
	}

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field combinations that cannot be defaulted away.
//
// Returns:
//   - An error if the mode is unknown or the room capacity is not positive
func (c *Config) Validate() error {
	if c.Mode != ModeRoom && c.Mode != ModeLobby {
		return fmt.Errorf("unknown server mode %q", c.Mode)
	}

	if c.RoomCapacity < 1 {
		return fmt.Errorf("room capacity must be positive, got %d", c.RoomCapacity)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeRoom)
	v.SetDefault("addr", ":9527")
	v.SetDefault("server_name", "Card Hall")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("log_level", "info")
	v.SetDefault("forbid_same_ip", false)
	v.SetDefault("room_capacity", 8)
	v.SetDefault("game_mode", "standard")
}
