package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honsun/ddnsd/config"
)

const buildConfig = `
base:
  startup_stagger: 1s
interfaces:
  fixed:
    kind: static
    prefix: "@"
    addresses: [203.0.113.1]
providers:
  dry:
    kind: fake
notifiers: {}
tasks:
  b-second:
    interface: fixed
    provider: dry
    family: ipv4
    interval: 1m
  a-first:
    interface: fixed
    provider: dry
    family: all
    interval: 30s
`

func TestBuild(t *testing.T) {
	root, err := config.Load(writeConfig(t, buildConfig))
	require.NoError(t, err)
	require.NoError(t, root.Validate())

	batch, err := config.Build(root, nil)
	require.NoError(t, err)

	require.Len(t, batch.Tasks, 2)
	// Stagger assignment follows sorted task names.
	assert.Equal(t, "a-first", batch.Tasks[0].Name())
	assert.Equal(t, "b-second", batch.Tasks[1].Name())
	assert.Equal(t, time.Second, batch.Stagger)
}

func TestBuildDefaultsStagger(t *testing.T) {
	root, err := config.Load(writeConfig(t, buildConfig))
	require.NoError(t, err)
	root.Base.StartupStagger = 0

	batch, err := config.Build(root, nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultStagger, batch.Stagger)
}

func TestBuildRejectsBadStaticAddress(t *testing.T) {
	root, err := config.Load(writeConfig(t, buildConfig))
	require.NoError(t, err)
	iface := root.Interfaces["fixed"]
	iface.Addresses = []string{"not-an-ip"}
	root.Interfaces["fixed"] = iface

	_, err = config.Build(root, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "building interface fixed")
}
