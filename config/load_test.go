package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honsun/ddnsd/config"
)

const sampleConfig = `
base:
  startup_stagger: 3s
interfaces:
  wan:
    kind: interface
    prefix: "@"
    name: eth0
  lookup:
    kind: web
    prefix: www
    urls: [https://v4.example.net/ip]
providers:
  cf:
    kind: cloudflare
    token: secret-token
    domain: example.com
    ttl: 120
    force: true
notifiers:
  hook:
    kind: webhook
    url: https://hooks.example.net/ddns
tasks:
  home:
    interface: wan
    provider: cf
    notifiers: [hook]
    family: all
    interval: 5m
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoad(t *testing.T) {
	root, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, root.Base.StartupStagger.Std())
	assert.Equal(t, "eth0", root.Interfaces["wan"].Name)
	assert.Equal(t, "cloudflare", root.Providers["cf"].Kind)
	assert.True(t, root.Providers["cf"].Force)
	assert.Equal(t, 120, root.Providers["cf"].TTL)

	task := root.Tasks["home"]
	assert.Equal(t, 5*time.Minute, task.Interval.Std())
	assert.Equal(t, []string{"hook"}, task.Notifiers)

	require.NoError(t, root.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "tasks: ["))
	assert.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
tasks:
  home:
    interval: soon
`))
	assert.Error(t, err)
}
