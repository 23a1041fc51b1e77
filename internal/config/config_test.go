package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
owner: https://alice.example/profile#me
registry: curriculum.yaml
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "https://alice.example/profile#me", cfg.Owner)
	assert.Equal(t, DriverSQLite, cfg.Local.Driver)
	assert.Equal(t, DriverFS, cfg.Remote.Driver)
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.TickInterval)
	assert.Equal(t, 15*time.Second, cfg.Engine.PersistInterval)
	assert.Zero(t, cfg.Save.WriteTimeout)
	assert.True(t, cfg.Backups.Enabled)
	assert.Equal(t, 20, cfg.Backups.Retain)
	assert.Equal(t, time.Hour, cfg.Backups.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(`
owner: alice
registry: r.yaml
local:
  driver: badger
  inMemory: true
remote:
  driver: s3
  s3:
    bucket: progress
    prefix: learners/alice/
    region: eu-central-1
    endpoint: http://localhost:9000
    pathStyle: true
engine:
  tickInterval: 20ms
  persistInterval: 1m
save:
  writeTimeout: 10s
backups:
  retain: 5
  interval: 30m
metrics:
  addr: 127.0.0.1:9090
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.True(t, cfg.Local.InMemory)
	assert.Equal(t, "progress", cfg.Remote.S3.Bucket)
	assert.True(t, cfg.Remote.S3.PathStyle)
	assert.Equal(t, 20*time.Millisecond, cfg.Engine.TickInterval)
	assert.Equal(t, time.Minute, cfg.Engine.PersistInterval)
	assert.Equal(t, 10*time.Second, cfg.Save.WriteTimeout)
	assert.Equal(t, 5, cfg.Backups.Retain)
	assert.Equal(t, 30*time.Minute, cfg.Backups.Interval)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "missing owner", yaml: "registry: r.yaml", want: "Owner"},
		{name: "missing registry", yaml: "owner: a", want: "Registry"},
		{name: "unknown driver", yaml: minimal + "local: {driver: mysql}", want: "oneof"},
		{name: "sqlite without path", yaml: minimal + "local: {driver: sqlite, path: ''}", want: "required_for_driver"},
		{name: "badger without path", yaml: minimal + "local: {driver: badger, path: ''}", want: "required_for_driver"},
		{name: "redis without addr", yaml: minimal + "local: {driver: redis}", want: "required_for_driver"},
		{name: "s3 without bucket", yaml: minimal + "remote: {driver: s3}", want: "required_for_driver"},
		{name: "zero tick", yaml: minimal + "engine: {tickInterval: 0s}", want: "TickInterval"},
		{name: "negative timeout", yaml: minimal + "save: {writeTimeout: -1s}", want: "WriteTimeout"},
		{name: "retain zero", yaml: minimal + "backups: {retain: 0}", want: "Retain"},
		{name: "bad log level", yaml: minimal + "log: {level: trace}", want: "Level"},
		{name: "bad metrics addr", yaml: minimal + "metrics: {addr: nope}", want: "hostname_port"},
		{name: "unknown field", yaml: minimal + "colour: blue", want: "colour"},
		{name: "not yaml", yaml: "owner: [", want: "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("MERA_OWNER", "bob")
	t.Setenv("MERA_REMOTE_DRIVER", "s3")
	t.Setenv("MERA_S3_BUCKET", "env-bucket")
	t.Setenv("MERA_WRITE_TIMEOUT", "3s")
	t.Setenv("MERA_BACKUPS_ENABLED", "false")
	t.Setenv("MERA_BACKUPS_RETAIN", "7")

	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.Owner)
	assert.Equal(t, DriverS3, cfg.Remote.Driver)
	assert.Equal(t, "env-bucket", cfg.Remote.S3.Bucket)
	assert.Equal(t, 3*time.Second, cfg.Save.WriteTimeout)
	assert.False(t, cfg.Backups.Enabled)
	assert.Equal(t, 7, cfg.Backups.Retain)
}

func TestParse_BadEnv(t *testing.T) {
	t.Setenv("MERA_TICK_INTERVAL", "soon")

	_, err := Parse([]byte(minimal))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MERA_TICK_INTERVAL")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mera.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "curriculum.yaml", cfg.Registry)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
