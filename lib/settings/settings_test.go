package settings

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreApplied(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := ReadConfig("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.IP)
	require.Equal(t, "8081", cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 5*time.Second, cfg.RetryDelay())
	require.Equal(t, SQLITE, cfg.DBType)
	require.Equal(t, "var/collabpads.db", cfg.DBSettings.Filename)
	require.Equal(t, int64(1<<20), cfg.SocketIo.MaxHttpBufferSize)
	require.Equal(t, 256, cfg.SocketIo.SendBufferSize)
	require.True(t, cfg.EnableMetrics)
	require.False(t, cfg.CommitRateLimiting.Enabled)
	require.Equal(t, 100, cfg.CommitRateLimiting.Points)
	require.Equal(t, "0.0.0.0:8081", cfg.ListenAddress())
}

func TestEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("COLLABPADS_PORT", "9999")
	t.Setenv("COLLABPADS_DBTYPE", "memory")
	t.Setenv("COLLABPADS_COMMITRATELIMITING_POINTS", "3")

	cfg, err := ReadConfig("")
	require.NoError(t, err)
	require.Equal(t, "9999", cfg.Port)
	require.Equal(t, MEMORY, cfg.DBType)
	require.Equal(t, 3, cfg.CommitRateLimiting.Points)
}

func TestReadConfigFromJSON(t *testing.T) {
	cfg, err := ReadConfig(`{
		"port": "7000",
		"retryInterval": 1,
		"dbType": "postgres",
		"dbSettings": {"host": "db", "port": "5433", "user": "collab"}
	}`)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, time.Second, cfg.RetryDelay())
	assert.Equal(t, POSTGRES, cfg.DBType)
	assert.Equal(t, "db", cfg.DBSettings.Host)
	assert.Equal(t, "collab", cfg.DBSettings.User)

	port, err := cfg.DBSettings.PortNumber(5432)
	require.NoError(t, err)
	assert.Equal(t, 5433, port)
}

func TestReadConfigRejectsInvalidValues(t *testing.T) {
	_, err := ReadConfig(`{"dbType": "mongodb"}`)
	assert.Error(t, err)

	_, err = ReadConfig(`{"retryInterval": 0}`)
	assert.Error(t, err)

	_, err = ReadConfig(`{"port": "http"}`)
	assert.Error(t, err)
}

func TestParseDBType(t *testing.T) {
	for input, expected := range map[string]IDBType{
		"sqlite":   SQLITE,
		" Memory ": MEMORY,
		"POSTGRES": POSTGRES,
		"mysql":    MYSQL,
	} {
		parsed, err := ParseDBType(input)
		require.NoError(t, err)
		assert.Equal(t, expected, parsed)
	}
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "COLLABPADS_SOCKETIO_MAXHTTPBUFFERSIZE", EnvVar(SocketIoMaxHttpBufferSize))
	assert.Equal(t, "COLLABPADS_RETRYINTERVAL", EnvVar(RetryInterval))
}

func TestDBPortFallback(t *testing.T) {
	port, err := DBSettings{}.PortNumber(3306)
	require.NoError(t, err)
	assert.Equal(t, 3306, port)

	_, err = DBSettings{Port: "abc"}.PortNumber(3306)
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("COLLABPADS_LOGLEVEL", "debug")

	run := func(args ...string) (string, error) {
		cmd := ConfigCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("get", Loglevel)
	require.NoError(t, err)
	assert.Equal(t, "debug\n", out)

	_, err = run("get", "nope")
	assert.Error(t, err)

	out, err = run("env")
	require.NoError(t, err)
	assert.Contains(t, out, "COLLABPADS_DBSETTINGS_FILENAME")

	out, err = run("show")
	require.NoError(t, err)
	assert.Contains(t, out, "retryInterval")

	out, err = run("init")
	require.NoError(t, err)
	var defaults map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &defaults))
	assert.Contains(t, defaults, "dbsettings")
}
