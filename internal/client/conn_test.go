package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kibako/internal/domain"
	"kibako/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/rtapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNakama speaks just enough of the realtime socket protocol: it answers
// the join RPC and match joins, and echoes a parts snapshot for every match
// data message it receives.
type fakeNakama struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu       sync.Mutex
	query    map[string]string
	joins    []*rtapi.MatchJoin
	received []*rtapi.MatchDataSend
	conns    []*websocket.Conn
}

func newFakeNakama(t *testing.T) (*fakeNakama, *httptest.Server) {
	f := &fakeNakama{t: t}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeNakama) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.query = map[string]string{
		"path":   r.URL.Path,
		"token":  r.URL.Query().Get("token"),
		"format": r.URL.Query().Get("format"),
	}
	f.conns = append(f.conns, ws)
	f.mu.Unlock()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		env := &rtapi.Envelope{}
		if err := unmarshalOpts.Unmarshal(data, env); err != nil {
			f.t.Errorf("bad envelope: %v", err)
			return
		}
		if reply := f.handle(env); reply != nil {
			out, _ := marshalOpts.Marshal(reply)
			if err := ws.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}
}

func (f *fakeNakama) handle(env *rtapi.Envelope) *rtapi.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch msg := env.Message.(type) {
	case *rtapi.Envelope_Rpc:
		if msg.Rpc.GetId() != rpcJoinPrototype {
			return &rtapi.Envelope{Cid: env.Cid, Message: &rtapi.Envelope_Error{Error: &rtapi.Error{Code: 5, Message: "rpc not found"}}}
		}
		payload, _ := json.Marshal(JoinPrototypeResponse{MatchID: "match-1", Ticket: "ticket-1", IsNew: true})
		return &rtapi.Envelope{Cid: env.Cid, Message: &rtapi.Envelope_Rpc{Rpc: &api.Rpc{Id: rpcJoinPrototype, Payload: string(payload)}}}
	case *rtapi.Envelope_MatchJoin:
		f.joins = append(f.joins, msg.MatchJoin)
		return &rtapi.Envelope{Cid: env.Cid, Message: &rtapi.Envelope_Match{Match: &rtapi.Match{MatchId: msg.MatchJoin.GetMatchId(), Authoritative: true}}}
	case *rtapi.Envelope_MatchDataSend:
		f.received = append(f.received, msg.MatchDataSend)
		snap, _ := json.Marshal(protocol.PartsSnapshot{Parts: []domain.Part{token(1, 3, 4, 0.5)}, Properties: []domain.PartProperty{}})
		return &rtapi.Envelope{Message: &rtapi.Envelope_MatchData{MatchData: &rtapi.MatchData{
			MatchId: msg.MatchDataSend.GetMatchId(),
			OpCode:  protocol.OpPartsSnapshot,
			Data:    snap,
		}}}
	}
	return nil
}

func (f *fakeNakama) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ws := range f.conns {
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = ws.Close()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialStore(t *testing.T, srv *httptest.Server) (*Conn, *Store, chan protocol.Event) {
	t.Helper()
	store := NewStore(nil)
	events := make(chan protocol.Event, 8)
	store.OnChange(func(e protocol.Event) { events <- e })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, ConnConfig{URL: wsURL(srv), Token: "session-token"}, store.HandleMatchData)
	require.NoError(t, err)
	return conn, store, events
}

func waitEvent(t *testing.T, events <-chan protocol.Event) protocol.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a room event")
		return ""
	}
}

func TestConnJoinPrototype(t *testing.T) {
	fake, srv := newFakeNakama(t)
	conn, store, events := dialStore(t, srv)
	defer conn.Close()

	require.NoError(t, conn.JoinPrototype(context.Background(), testVersionID))
	assert.Equal(t, testVersionID, conn.VersionID())
	assert.Equal(t, protocol.EventPartsSnapshot, waitEvent(t, events))
	require.Len(t, store.Parts(), 1)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "/ws", fake.query["path"])
	assert.Equal(t, "session-token", fake.query["token"])
	assert.Equal(t, "json", fake.query["format"])
	require.Len(t, fake.joins, 1)
	assert.Equal(t, "match-1", fake.joins[0].GetMatchId())
	assert.Equal(t, "ticket-1", fake.joins[0].GetMetadata()[joinMetadataTicket])
	require.Len(t, fake.received, 1)
	assert.Equal(t, protocol.OpJoinPrototype, fake.received[0].GetOpCode())
	assert.True(t, fake.received[0].GetReliable())
}

func TestConnEmitThroughReducer(t *testing.T) {
	fake, srv := newFakeNakama(t)
	conn, _, events := dialStore(t, srv)
	defer conn.Close()

	assert.ErrorIs(t, conn.Emit(context.Background(), protocol.Message{Event: protocol.EventDeletePart}), ErrNotJoined)

	require.NoError(t, conn.JoinPrototype(context.Background(), testVersionID))
	waitEvent(t, events)

	r := NewReducer(conn.VersionID(), conn, nil)
	require.NoError(t, r.Dispatch(context.Background(), ShuffleDeck{DeckID: 4}))
	waitEvent(t, events)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.received, 2)
	last := fake.received[1]
	assert.Equal(t, protocol.OpShuffleDeck, last.GetOpCode())
	var req protocol.ShuffleDeckRequest
	require.NoError(t, json.Unmarshal(last.GetData(), &req))
	assert.Equal(t, protocol.ShuffleDeckRequest{PrototypeVersionID: testVersionID, DeckID: 4}, req)
}

func TestConnCloseIsNotUnexpected(t *testing.T) {
	_, srv := newFakeNakama(t)
	conn, _, _ := dialStore(t, srv)

	require.NoError(t, conn.Close())
	<-conn.Done()
	assert.ErrorIs(t, conn.Err(), ErrClosed)
	assert.NotErrorIs(t, conn.Err(), ErrUnexpectedDisconnect)
}

func TestConnServerCloseIsUnexpected(t *testing.T) {
	fake, srv := newFakeNakama(t)
	conn, _, _ := dialStore(t, srv)
	assert.NoError(t, conn.Err())

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.conns) == 1
	}, 5*time.Second, 10*time.Millisecond)
	fake.closeAll()

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not notice the server close")
	}
	assert.ErrorIs(t, conn.Err(), ErrUnexpectedDisconnect)
}

func TestConnReconnectRejoins(t *testing.T) {
	fake, srv := newFakeNakama(t)
	conn, _, events := dialStore(t, srv)
	require.NoError(t, conn.JoinPrototype(context.Background(), testVersionID))
	waitEvent(t, events)

	next, err := conn.Reconnect(context.Background())
	require.NoError(t, err)
	defer next.Close()
	assert.ErrorIs(t, conn.Err(), ErrClosed)
	assert.Equal(t, testVersionID, next.VersionID())
	waitEvent(t, events)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.joins, 2)
}
