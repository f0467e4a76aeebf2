package models

const (
	ProtocolWireguard = "wireguard"
	ProtocolVless     = "vless"

	// EndpointProxyCapable is the only endpoint that can terminate the
	// proxy protocol; the other endpoints run the tunnel daemon alone.
	EndpointProxyCapable = 1

	EndpointDefault = 1
	EndpointSecond  = 2
)

type Preference struct {
	UserID   int64  `gorm:"primaryKey"` // telegram id
	Endpoint int    `gorm:"default:1"`
	Protocol string `gorm:"size:50;default:'wireguard'"`
}

func DefaultPreference(userID int64) Preference {
	return Preference{UserID: userID, Endpoint: EndpointDefault, Protocol: ProtocolWireguard}
}
