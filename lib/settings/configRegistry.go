package settings

import (
	"strings"

	"github.com/spf13/viper"
)

type ConfigKey struct {
	Key         string
	Default     any
	Description string
}

const envPrefix = "COLLABPADS"

func EnvVar(key string) string {
	return envPrefix + "_" + strings.ToUpper(
		strings.ReplaceAll(key, ".", "_"),
	)
}

var Registry = []ConfigKey{
	// ---------------------------------------------------------------------
	// Core
	// ---------------------------------------------------------------------
	{Key: IP, Default: "0.0.0.0", Description: "Bind address"},
	{Key: Port, Default: "8081", Description: "WebSocket server port"},
	{Key: Loglevel, Default: "info", Description: "Log level (debug, info, warn, error)"},
	{
		Key:         RetryInterval,
		Default:     5,
		Description: "Seconds to wait before restarting the server after a fatal error",
	},
	{Key: EnableMetrics, Default: true, Description: "Expose prometheus metrics on /metrics"},

	// ---------------------------------------------------------------------
	// Database
	// ---------------------------------------------------------------------
	{Key: DBType, Default: string(SQLITE), Description: "Database type (sqlite, memory, postgres, mysql)"},
	{
		Key:         DBSettingsFilename,
		Default:     "var/collabpads.db",
		Description: "SQLite database filename",
	},
	{Key: DBSettingsHost, Default: "localhost", Description: "Database host"},
	{Key: DBSettingsPort, Default: nil, Description: "Database port"},
	{Key: DBSettingsDatabase, Default: "collabpads", Description: "Database name"},
	{Key: DBSettingsUser, Default: nil, Description: "Database user"},
	{Key: DBSettingsPassword, Default: nil, Description: "Database password"},
	{Key: DBSettingsCharset, Default: "utf8mb4", Description: "Database charset (only relevant for MySQL)"},

	// ---------------------------------------------------------------------
	// Connections
	// ---------------------------------------------------------------------
	{
		Key:         SocketIoMaxHttpBufferSize,
		Default:     1 << 20,
		Description: "Maximum size of a single inbound frame in bytes",
	},
	{
		Key:         SocketIoSendBufferSize,
		Default:     256,
		Description: "Outbound frames buffered per connection",
	},
	{
		Key:         CommitRateLimitingEnabled,
		Default:     false,
		Description: "Drop inbound frames above the rate limit",
	},
	{
		Key:         CommitRateLimitingDuration,
		Default:     1,
		Description: "Rate limit window in seconds",
	},
	{
		Key:         CommitRateLimitingPoints,
		Default:     100,
		Description: "Frames allowed per window and remote address",
	},
}

func applyRegistryDefaults(v *viper.Viper) {
	for _, c := range Registry {
		v.SetDefault(c.Key, c.Default)
	}
}
