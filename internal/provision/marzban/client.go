// Package marzban issues credentials through the remote managed-proxy
// panel. One remote account per user; issuing twice refreshes the link
// set instead of creating a duplicate.
package marzban

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"plaza-bot/internal/faults"
	"plaza-bot/internal/models"
	"plaza-bot/internal/provision"
)

type Backend struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client

	mu    sync.Mutex
	token string
}

func New(baseURL, username, password string) *Backend {
	return &Backend{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// getToken returns the cached bearer token, acquiring a fresh one from
// the panel when none is held.
func (b *Backend) getToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.token != "" {
		return b.token, nil
	}

	form := url.Values{}
	form.Set("username", b.Username)
	form.Set("password", b.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/api/admin/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return "", faults.Unavailablef("panel token request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", faults.Unavailablef("panel refused token: %s (status: %d)", string(body), resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}

	b.token = tok.AccessToken
	return b.token, nil
}

func (b *Backend) dropToken() {
	b.mu.Lock()
	b.token = ""
	b.mu.Unlock()
}

// doRequest performs an authenticated call, re-acquiring the session
// token once if the panel reports it expired.
func (b *Backend) doRequest(ctx context.Context, method, endpoint string, payload interface{}) (int, []byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := b.getToken(ctx)
		if err != nil {
			return 0, nil, err
		}

		var bodyReader io.Reader
		if payload != nil {
			jsonBody, err := json.Marshal(payload)
			if err != nil {
				return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, b.BaseURL+endpoint, bodyReader)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := b.HTTPClient.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return 0, nil, faults.Unavailablef("panel request timed out")
			}
			return 0, nil, faults.Unavailablef("panel request failed: %v", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			b.dropToken()
			continue
		}

		return resp.StatusCode, respBody, nil
	}
	return 0, nil, faults.Unavailablef("panel session could not be established")
}

func remoteName(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// Issue ensures the remote account exists with the requested expiry and
// returns its connection links.
func (b *Backend) Issue(ctx context.Context, userID int64, pref models.Preference, durationDays int) (provision.Credential, error) {
	name := remoteName(userID)

	status, body, err := b.doRequest(ctx, http.MethodGet, "/api/user/"+name, nil)
	if err != nil {
		return provision.Credential{}, err
	}

	switch status {
	case http.StatusOK:
		var user userResponse
		if err := json.Unmarshal(body, &user); err != nil {
			return provision.Credential{}, fmt.Errorf("failed to unmarshal panel user: %w", err)
		}
		return provision.Credential{Payload: b.linksPayload(user), Handle: name}, nil
	case http.StatusNotFound:
		// fall through to creation
	default:
		return provision.Credential{}, faults.Unavailablef("panel lookup error: %s (status: %d)", string(body), status)
	}

	create := createUserRequest{
		Username: name,
		Proxies: map[string]interface{}{
			"vless": map[string]string{"flow": ""},
			"vmess": map[string]string{},
		},
		DataLimit: 0,
		Expire:    time.Now().AddDate(0, 0, durationDays).Unix(),
		Status:    "active",
	}

	status, body, err = b.doRequest(ctx, http.MethodPost, "/api/user", create)
	if err != nil {
		return provision.Credential{}, err
	}
	if status == http.StatusConflict {
		// Concurrent caller created the account between our lookup and
		// create. Retriable: the next attempt takes the lookup path.
		return provision.Credential{}, faults.Conflictf("panel account %s created concurrently", name)
	}
	if status != http.StatusOK {
		return provision.Credential{}, faults.Unavailablef("panel create error: %s (status: %d)", string(body), status)
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return provision.Credential{}, fmt.Errorf("failed to unmarshal panel user: %w", err)
	}
	return provision.Credential{Payload: b.linksPayload(user), Handle: name}, nil
}

// Cleanup deletes the remote account addressed by the handle.
func (b *Backend) Cleanup(ctx context.Context, handle string) error {
	status, body, err := b.doRequest(ctx, http.MethodDelete, "/api/user/"+handle, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return faults.Unavailablef("panel delete error: %s (status: %d)", string(body), status)
	}
	return nil
}

func (b *Backend) linksPayload(user userResponse) string {
	if len(user.Links) > 0 {
		return strings.Join(user.Links, "\n")
	}
	if user.SubscriptionURL != "" {
		return user.SubscriptionURL
	}
	return fmt.Sprintf("%s/sub/%s", b.BaseURL, user.Username)
}
