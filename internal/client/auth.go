package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/heroiclabs/nakama-common/api"
)

// AuthenticateDevice exchanges a device id for a Nakama session token over
// the HTTP API at baseURL (e.g. http://127.0.0.1:7350), creating the account
// when needed.
func AuthenticateDevice(ctx context.Context, httpClient *http.Client, baseURL, serverKey, deviceID string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	u.Path = "/v2/account/authenticate/device"
	u.RawQuery = url.Values{"create": {"true"}}.Encode()

	body, err := json.Marshal(map[string]string{"id": deviceID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(serverKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("authenticate device: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authenticate device: status %d: %s", resp.StatusCode, raw)
	}

	session := &api.Session{}
	if err := unmarshalOpts.Unmarshal(raw, session); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	return session.GetToken(), nil
}
