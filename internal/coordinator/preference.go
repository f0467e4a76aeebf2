package coordinator

import (
	"plaza-bot/internal/faults"
	"plaza-bot/internal/models"
)

// SelectEndpoint persists an endpoint choice. Picking an endpoint that
// cannot terminate the proxy protocol coerces the protocol back to the
// tunnel protocol; the endpoint choice itself always wins.
func (c *Coordinator) SelectEndpoint(userID int64, endpoint int) (models.Preference, error) {
	if endpoint != models.EndpointDefault && endpoint != models.EndpointSecond {
		return models.Preference{}, faults.Invalidf("unknown endpoint %d", endpoint)
	}

	pref, err := c.ledger.GetPreference(userID)
	if err != nil {
		return models.Preference{}, err
	}

	pref.Endpoint = endpoint
	if pref.Protocol == models.ProtocolVless && endpoint != models.EndpointProxyCapable {
		pref.Protocol = models.ProtocolWireguard
	}

	if err := c.ledger.SetPreference(pref); err != nil {
		return models.Preference{}, err
	}
	return pref, nil
}

// SelectProtocol persists a protocol choice. Picking the proxy protocol
// on an endpoint that cannot serve it coerces the endpoint to the
// proxy-capable one; the protocol choice itself always wins. The two
// coercions are symmetric: the field the user just touched is kept, the
// other one moves.
func (c *Coordinator) SelectProtocol(userID int64, protocol string) (models.Preference, error) {
	if protocol != models.ProtocolWireguard && protocol != models.ProtocolVless {
		return models.Preference{}, faults.Invalidf("unknown protocol %q", protocol)
	}

	pref, err := c.ledger.GetPreference(userID)
	if err != nil {
		return models.Preference{}, err
	}

	pref.Protocol = protocol
	if protocol == models.ProtocolVless && pref.Endpoint != models.EndpointProxyCapable {
		pref.Endpoint = models.EndpointProxyCapable
	}

	if err := c.ledger.SetPreference(pref); err != nil {
		return models.Preference{}, err
	}
	return pref, nil
}
