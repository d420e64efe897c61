//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"kibako/internal/client"
	"kibako/internal/protocol"
)

const (
	ServerKey = "defaultkey"
	baseURL   = "http://127.0.0.1:7350"
	socketURL = "ws://127.0.0.1:7350"
)

func serverURL(env, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// TestClient is one authenticated user connected to a local Nakama.
type TestClient struct {
	Conn    *client.Conn
	Store   *client.Store
	Reducer *client.Reducer
	events  chan protocol.Event
}

func NewTestClient(t *testing.T) *TestClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deviceID := fmt.Sprintf("kibako_test_device_%d", time.Now().UnixNano())
	token, err := client.AuthenticateDevice(ctx, nil, serverURL("KIBAKO_API_URL", baseURL), ServerKey, deviceID)
	if err != nil {
		t.Fatalf("Failed to authenticate: %v", err)
	}

	tc := &TestClient{Store: client.NewStore(nil), events: make(chan protocol.Event, 64)}
	tc.Store.OnChange(func(e protocol.Event) {
		select {
		case tc.events <- e:
		default:
		}
	})

	tc.Conn, err = client.Dial(ctx, client.ConnConfig{URL: serverURL("KIBAKO_SOCKET_URL", socketURL), Token: token}, tc.Store.HandleMatchData)
	if err != nil {
		t.Fatalf("Failed to connect socket: %v", err)
	}
	return tc
}

// Join enters the room of versionID and waits for the first snapshot.
func (tc *TestClient) Join(t *testing.T, versionID string) {
	t.Helper()
	if err := tc.Conn.JoinPrototype(context.Background(), versionID); err != nil {
		t.Fatalf("Failed to join prototype %s: %v", versionID, err)
	}
	tc.Reducer = client.NewReducer(versionID, tc.Conn, nil)
	tc.WaitFor(t, protocol.EventPartsSnapshot, 5*time.Second)
}

func (tc *TestClient) Close() {
	if tc.Conn != nil {
		_ = tc.Conn.Close()
	}
}

// WaitFor blocks until the store applies an event of the given kind.
func (tc *TestClient) WaitFor(t *testing.T, event protocol.Event, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-tc.events:
			if e == event {
				return
			}
		case <-deadline:
			t.Fatalf("Timeout waiting for %s", event)
		}
	}
}
