package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plaza-bot/internal/faults"
	"plaza-bot/internal/models"
)

func TestSelectEndpointCoercesProtocol(t *testing.T) {
	coord, l, _, _ := setupCoordinator(t)

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)

	// Proxy protocol on the proxy-capable endpoint: a legal pair.
	pref, err := coord.SelectProtocol(100, models.ProtocolVless)
	require.NoError(t, err)
	assert.Equal(t, models.EndpointProxyCapable, pref.Endpoint)

	// Moving to the second endpoint takes the proxy protocol away.
	pref, err = coord.SelectEndpoint(100, models.EndpointSecond)
	require.NoError(t, err)
	assert.Equal(t, models.EndpointSecond, pref.Endpoint)
	assert.Equal(t, models.ProtocolWireguard, pref.Protocol)

	// And the stored row agrees with what was returned.
	stored, err := l.GetPreference(100)
	require.NoError(t, err)
	assert.Equal(t, pref, stored)
}

func TestSelectProtocolCoercesEndpoint(t *testing.T) {
	coord, l, _, _ := setupCoordinator(t)

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)

	_, err = coord.SelectEndpoint(100, models.EndpointSecond)
	require.NoError(t, err)

	// Asking for the proxy protocol drags the endpoint back to the
	// only one that can terminate it.
	pref, err := coord.SelectProtocol(100, models.ProtocolVless)
	require.NoError(t, err)
	assert.Equal(t, models.ProtocolVless, pref.Protocol)
	assert.Equal(t, models.EndpointProxyCapable, pref.Endpoint)
}

func TestSelectEndpointKeepsTunnelProtocol(t *testing.T) {
	coord, l, _, _ := setupCoordinator(t)

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)

	pref, err := coord.SelectEndpoint(100, models.EndpointSecond)
	require.NoError(t, err)
	assert.Equal(t, models.ProtocolWireguard, pref.Protocol, "tunnel protocol works everywhere, no coercion")
}

func TestSelectRejectsUnknownValues(t *testing.T) {
	coord, l, _, _ := setupCoordinator(t)

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)

	_, err = coord.SelectEndpoint(100, 3)
	assert.ErrorIs(t, err, faults.ErrInvalid)

	_, err = coord.SelectProtocol(100, "openvpn")
	assert.ErrorIs(t, err, faults.ErrInvalid)

	// A rejected choice must not disturb the stored preference.
	pref, err := l.GetPreference(100)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreference(100), pref)
}

func TestPreferenceDrivesBackendSelection(t *testing.T) {
	coord, l, backend, _ := setupCoordinator(t)

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)

	_, err = coord.SelectProtocol(100, models.ProtocolVless)
	require.NoError(t, err)

	_, err = coord.ActivateTrial(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, models.ProtocolVless, backend.lastPref.Protocol)
}
