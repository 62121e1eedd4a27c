// Package config generalizes the teacher's flags-only HubOptions into a
// spf13/viper-loaded configuration, in the manner of niceyeti-tabular's
// FromYaml (viper.New + ReadInConfig + Unmarshal into a plain struct,
// env/flag overrides layered on top). Carries spec.md §6's "zone
// configuration" fields plus the rate-limit defaults and QoS thresholds
// the ambient stack needs.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/boundlessrealms/zoneserver/world"
)

// AABB mirrors world.AABB in plain float64 for YAML-friendliness; Config's
// consumer converts to world.AABB with world.ToFixed.
type AABB struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b AABB) ToWorld() world.AABB {
	return world.AABB{
		MinX: world.ToFixed(b.MinX),
		MinY: world.ToFixed(b.MinY),
		MaxX: world.ToFixed(b.MaxX),
		MaxY: world.ToFixed(b.MaxY),
	}
}

// RateLimits mirrors spec.md §6's token-bucket table.
type RateLimits struct {
	ConnectionsPerIPBurst     int `mapstructure:"connections_per_ip_burst"`
	ConnectionsPerIPSustained int `mapstructure:"connections_per_ip_sustained"`
	PacketsPerConnBurst       int `mapstructure:"packets_per_conn_burst"`
	PacketsPerConnSustained   int `mapstructure:"packets_per_conn_sustained"`
	ReliablePerConnBurst      int `mapstructure:"reliable_per_conn_burst"`
	ReliablePerConnSustained  int `mapstructure:"reliable_per_conn_sustained"`
}

// QoS mirrors spec.md §4.12's budget-monitor thresholds.
type QoS struct {
	DegradedThresholdMS int `mapstructure:"degraded_threshold_ms"`
	RecoveryThresholdMS int `mapstructure:"recovery_threshold_ms"`
	RecoveryHoldSeconds int `mapstructure:"recovery_hold_seconds"`
	CriticalThresholdMS int `mapstructure:"critical_threshold_ms"`
}

func (q QoS) Degraded() time.Duration  { return time.Duration(q.DegradedThresholdMS) * time.Millisecond }
func (q QoS) Recovery() time.Duration  { return time.Duration(q.RecoveryThresholdMS) * time.Millisecond }
func (q QoS) Critical() time.Duration  { return time.Duration(q.CriticalThresholdMS) * time.Millisecond }
func (q QoS) RecoveryHold() time.Duration {
	return time.Duration(q.RecoveryHoldSeconds) * time.Second
}

// Config is the complete zone configuration of spec.md §6 "Zone
// configuration": zone_id, world AABB, aura_buffer, transport host/port,
// session-cache endpoint, combat-log endpoint, plus the rate-limit
// defaults and QoS thresholds the ambient stack needs.
type Config struct {
	ZoneID     uint32     `mapstructure:"zone_id"`
	World      AABB       `mapstructure:"world"`
	AuraBuffer float64    `mapstructure:"aura_buffer"`
	Transport  Transport  `mapstructure:"transport"`
	Session    Session    `mapstructure:"session"`
	CombatLog  CombatLog  `mapstructure:"combat_log"`
	RateLimits RateLimits `mapstructure:"rate_limits"`
	QoS        QoS        `mapstructure:"qos"`
	LogFormat  string     `mapstructure:"log_format"`
	LogLevel   string     `mapstructure:"log_level"`
	MaxPlayers int        `mapstructure:"max_players"`
	Neighbors  map[string]uint32 `mapstructure:"neighbors"` // direction -> zone id, for aura/migrate
	// ZoneAddrs maps a neighbor zone id (as a decimal string, mirroring
	// Neighbors' string-keyed shape) to its transport address, so an
	// outgoing migration's COMPLETING phase knows where to redirect the
	// client (spec.md §4.11 step 4).
	ZoneAddrs map[string]Transport `mapstructure:"zone_addrs"`
}

// AddrFor resolves the transport address of neighbor zone id, if known.
func (c Config) AddrFor(zoneID uint32) (Transport, bool) {
	t, ok := c.ZoneAddrs[strconv.FormatUint(uint64(zoneID), 10)]
	return t, ok
}

// Transport is the network-adapter bind configuration.
type Transport struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Session is the embedded session-cache / pub/sub fabric location
// (spec.md §4.13: buntdb-backed, so a file path or ":memory:").
type Session struct {
	Path string `mapstructure:"path"`
}

// CombatLog is the durable combat-event log backend (spec.md §4.13).
type CombatLog struct {
	Region string `mapstructure:"region"`
	Stage  string `mapstructure:"stage"` // table-name suffix, mirrors mk48's dynamodb.go
}

// Defaults returns the zone configuration defaults, used as the viper
// baseline before a file/env/flag overlay is applied.
func Defaults() Config {
	return Config{
		ZoneID:     1,
		World:      AABB{MinX: -500, MinY: -500, MaxX: 500, MaxY: 500},
		AuraBuffer: 50,
		Transport:  Transport{Host: "0.0.0.0", Port: 8192},
		Session:    Session{Path: ":memory:"},
		CombatLog:  CombatLog{Region: "us-east-1", Stage: "dev"},
		RateLimits: RateLimits{
			ConnectionsPerIPBurst: 10, ConnectionsPerIPSustained: 2,
			PacketsPerConnBurst: 120, PacketsPerConnSustained: 60,
			ReliablePerConnBurst: 30, ReliablePerConnSustained: 10,
		},
		QoS: QoS{
			DegradedThresholdMS: 20,
			RecoveryThresholdMS: 18,
			RecoveryHoldSeconds: 1,
			CriticalThresholdMS: 50,
		},
		LogFormat:  "text",
		LogLevel:   "info",
		MaxPlayers: 500,
	}
}

// Load reads configuration from path (YAML) layered over Defaults, with
// ZONE_-prefixed environment variable overrides (e.g. ZONE_TRANSPORT_PORT),
// in the manner of niceyeti-tabular's FromYaml. path == "" skips the file
// and returns defaults plus env overrides only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ZONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Defaults()
	if err := v.MergeConfigMap(structToMap(defaults)); err != nil {
		return Config{}, fmt.Errorf("config: apply defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// structToMap round-trips Config through viper's own Unmarshal source shape
// (a nested map), which is the simplest way to seed defaults that
// MergeInConfig can then override key-by-key.
func structToMap(cfg Config) map[string]interface{} {
	return map[string]interface{}{
		"zone_id": cfg.ZoneID,
		"world": map[string]interface{}{
			"minx": cfg.World.MinX, "miny": cfg.World.MinY,
			"maxx": cfg.World.MaxX, "maxy": cfg.World.MaxY,
		},
		"aura_buffer": cfg.AuraBuffer,
		"transport":   map[string]interface{}{"host": cfg.Transport.Host, "port": cfg.Transport.Port},
		"session":     map[string]interface{}{"path": cfg.Session.Path},
		"combat_log":  map[string]interface{}{"region": cfg.CombatLog.Region, "stage": cfg.CombatLog.Stage},
		"rate_limits": map[string]interface{}{
			"connections_per_ip_burst": cfg.RateLimits.ConnectionsPerIPBurst,
			"connections_per_ip_sustained": cfg.RateLimits.ConnectionsPerIPSustained,
			"packets_per_conn_burst": cfg.RateLimits.PacketsPerConnBurst,
			"packets_per_conn_sustained": cfg.RateLimits.PacketsPerConnSustained,
			"reliable_per_conn_burst": cfg.RateLimits.ReliablePerConnBurst,
			"reliable_per_conn_sustained": cfg.RateLimits.ReliablePerConnSustained,
		},
		"qos": map[string]interface{}{
			"degraded_threshold_ms": cfg.QoS.DegradedThresholdMS,
			"recovery_threshold_ms": cfg.QoS.RecoveryThresholdMS,
			"recovery_hold_seconds": cfg.QoS.RecoveryHoldSeconds,
			"critical_threshold_ms": cfg.QoS.CriticalThresholdMS,
		},
		"log_format":  cfg.LogFormat,
		"log_level":   cfg.LogLevel,
		"max_players": cfg.MaxPlayers,
	}
}
