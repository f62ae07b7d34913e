package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/shrimpy-stream/internal/config"
)

func TestNewRESTClient(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	_, err = newRESTClient(cfg)
	assert.ErrorIs(t, err, errNoCredentials)

	cfg.Auth.APIKey = "key"
	cfg.Auth.SecretKey = "c2VjcmV0"
	client, err := newRESTClient(cfg)
	require.NoError(t, err)
	assert.NotNil(t, client)

	cfg.Auth.SecretKey = "not base64!"
	_, err = newRESTClient(cfg)
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["stream"])
	assert.True(t, names["token"])
	assert.NotNil(t, streamCmd.Flags().Lookup("sub"))
}
