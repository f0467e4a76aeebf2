package marzban

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type createUserRequest struct {
	Username  string                 `json:"username"`
	Proxies   map[string]interface{} `json:"proxies"`
	Inbounds  map[string][]string    `json:"inbounds,omitempty"`
	DataLimit int64                  `json:"data_limit"`
	Expire    int64                  `json:"expire"`
	Status    string                 `json:"status"`
}

type userResponse struct {
	Username        string   `json:"username"`
	Status          string   `json:"status"`
	Expire          int64    `json:"expire"`
	SubscriptionURL string   `json:"subscription_url"`
	Links           []string `json:"links"`
}
