// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation, network and gameplay settings.
//
// Defaults live here; environment variables override them, and gameplay
// tuning can additionally be overridden by a YAML file (see tuning.go).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds the fixed simulation cadence.
type SimConfig struct {
	TickHz     int // Simulation ticks per second
	SnapshotHz int // Outbound replication snapshots per second
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickHz:     50,
		SnapshotHz: 10,
	}
}

// SnapshotEvery returns how many ticks pass between two outbound snapshots.
func (c SimConfig) SnapshotEvery() int {
	if c.SnapshotHz <= 0 || c.TickHz <= 0 {
		return 1
	}
	n := c.TickHz / c.SnapshotHz
	if n <= 0 {
		return 1
	}
	return n
}

// TickDelta returns the fixed tick length in seconds.
func (c SimConfig) TickDelta() float64 {
	if c.TickHz <= 0 {
		return 1.0 / float64(DefaultSim().TickHz)
	}
	return 1.0 / float64(c.TickHz)
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if hz := getEnvInt("TICK_HZ", 0); hz > 0 {
		cfg.TickHz = hz
	}
	if hz := getEnvInt("SNAPSHOT_HZ", 0); hz > 0 {
		cfg.SnapshotHz = hz
	}

	return cfg
}

// =============================================================================
// PARTICIPANT NETWORK CONFIGURATION
// =============================================================================

// NetConfig holds participant-side transport settings.
type NetConfig struct {
	ServerURL   string        // ws:// URL of the relay server
	Room        string        // Room code to join
	DialTimeout time.Duration // Handshake timeout
	SendBuffer  int           // Outbound frames queued before dropping
}

// DefaultNet returns the default participant network configuration.
func DefaultNet() NetConfig {
	return NetConfig{
		ServerURL:   "ws://127.0.0.1:3000/ws",
		Room:        "LOBBY",
		DialTimeout: 5 * time.Second,
		SendBuffer:  256,
	}
}

// NetFromEnv returns network configuration with environment variable overrides.
func NetFromEnv() NetConfig {
	cfg := DefaultNet()

	if v := os.Getenv("RELAY_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("ROOM"); v != "" {
		cfg.Room = strings.ToUpper(v)
	}
	if ms := getEnvInt("DIAL_TIMEOUT_MS", 0); ms > 0 {
		cfg.DialTimeout = time.Duration(ms) * time.Millisecond
	}
	if n := getEnvInt("SEND_BUFFER", 0); n > 0 {
		cfg.SendBuffer = n
	}

	return cfg
}

// =============================================================================
// RELAY SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds relay server settings.
type ServerConfig struct {
	Port              int
	MaxPlayersPerRoom int
	MessagesPerSecond float64 // Per-connection relayed frame budget
	Burst             int
	CORSOrigins       []string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:              3000,
		MaxPlayersPerRoom: 16,
		MessagesPerSecond: 200, // a 50Hz participant pushing every tick plus snapshots
		Burst:             400,
		CORSOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mp := getEnvInt("MAX_PLAYERS_PER_ROOM", 0); mp > 0 {
		cfg.MaxPlayersPerRoom = mp
	}
	if r := getEnvFloat("RELAY_MSGS_PER_SEC", 0); r > 0 {
		cfg.MessagesPerSecond = r
	}
	if b := getEnvInt("RELAY_BURST", 0); b > 0 {
		cfg.Burst = b
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	return cfg
}

// =============================================================================
// DEBUG / OBSERVABILITY CONFIGURATION
// =============================================================================

// DebugConfig configures the pprof + metrics debug server.
type DebugConfig struct {
	Enabled       bool
	ListenAddr    string // MUST stay on localhost in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultDebug returns safe defaults.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugFromEnv returns debug configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if v := os.Getenv("DEBUG_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim         SimConfig
	Net         NetConfig
	Server      ServerConfig
	Debug       DebugConfig
	Tuning      Tuning
	TuningFile  string // Optional YAML override, watched for changes
	JournalPath string // Event journal (JSONL); empty disables it
}

// Load returns the complete configuration with environment overrides.
// A broken tuning file is reported and the env/default tuning is kept.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		Sim:         SimFromEnv(),
		Net:         NetFromEnv(),
		Server:      ServerFromEnv(),
		Debug:       DebugFromEnv(),
		Tuning:      TuningFromEnv(),
		TuningFile:  os.Getenv("TUNING_FILE"),
		JournalPath: getEnvWithDefault("JOURNAL_PATH", "events.jsonl"),
	}

	if cfg.TuningFile != "" {
		t, err := LoadTuningFile(cfg.TuningFile, cfg.Tuning)
		if err != nil {
			return cfg, err
		}
		cfg.Tuning = t
	}

	return cfg, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
