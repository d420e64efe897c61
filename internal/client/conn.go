package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"kibako/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/rtapi"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	rpcJoinPrototype   = "join_prototype"
	joinMetadataTicket = "ticket"
)

var (
	// ErrUnexpectedDisconnect reports a connection closed by the server or
	// lost to a transport error, as opposed to Close.
	ErrUnexpectedDisconnect = errors.New("unexpected disconnect")
	ErrClosed               = errors.New("connection closed")
	ErrNotJoined            = errors.New("not joined to a prototype room")
)

// ServerError is an error envelope returned by Nakama for a request.
type ServerError struct {
	Code    int32
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("nakama error %d: %s", e.Code, e.Message)
}

// MatchDataHandler receives room broadcasts. It runs on the read goroutine.
type MatchDataHandler func(opCode int64, data []byte) error

// ConnConfig describes how to reach the Nakama socket.
type ConnConfig struct {
	// URL is the socket base, e.g. ws://127.0.0.1:7350.
	URL    string
	Token  string
	Dialer *websocket.Dialer
	Logger *zap.Logger
}

// Conn is an owned socket connection to one Nakama server. Its lifecycle
// belongs to the caller: Dial, JoinPrototype, Emit, then Close or Reconnect.
type Conn struct {
	cfg     ConnConfig
	handler MatchDataHandler
	logger  *zap.Logger
	ws      *websocket.Conn

	writeMu sync.Mutex
	cid     atomic.Uint64

	pendingMu sync.Mutex
	pending   map[string]chan *rtapi.Envelope

	roomMu    sync.RWMutex
	matchID   string
	versionID string

	closing atomic.Bool
	done    chan struct{}
	err     error
}

var (
	marshalOpts   = protojson.MarshalOptions{UseProtoNames: true}
	unmarshalOpts = protojson.UnmarshalOptions{DiscardUnknown: true}
)

// Dial opens the socket and starts the read goroutine.
func Dial(ctx context.Context, cfg ConnConfig, handler MatchDataHandler) (*Conn, error) {
	u, err := socketURL(cfg.URL, cfg.Token)
	if err != nil {
		return nil, err
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ws, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Conn{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		ws:      ws,
		pending: make(map[string]chan *rtapi.Envelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func socketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	q.Set("format", "json")
	q.Set("status", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// JoinPrototypeResponse is the join_prototype RPC result.
type JoinPrototypeResponse struct {
	MatchID string `json:"matchId"`
	Ticket  string `json:"ticket,omitempty"`
	IsNew   bool   `json:"isNew"`
}

// JoinPrototype finds or creates the room of versionID, joins it and asks
// for the initial snapshot.
func (c *Conn) JoinPrototype(ctx context.Context, versionID string) error {
	payload, err := json.Marshal(protocol.JoinPrototypeRequest{PrototypeVersionID: versionID})
	if err != nil {
		return err
	}
	reply, err := c.request(ctx, &rtapi.Envelope{Message: &rtapi.Envelope_Rpc{
		Rpc: &api.Rpc{Id: rpcJoinPrototype, Payload: string(payload)},
	}})
	if err != nil {
		return fmt.Errorf("%s rpc: %w", rpcJoinPrototype, err)
	}
	var resp JoinPrototypeResponse
	if err := json.Unmarshal([]byte(reply.GetRpc().GetPayload()), &resp); err != nil {
		return fmt.Errorf("decode %s response: %w", rpcJoinPrototype, err)
	}

	join := &rtapi.MatchJoin{Id: &rtapi.MatchJoin_MatchId{MatchId: resp.MatchID}}
	if resp.Ticket != "" {
		join.Metadata = map[string]string{joinMetadataTicket: resp.Ticket}
	}
	if _, err := c.request(ctx, &rtapi.Envelope{Message: &rtapi.Envelope_MatchJoin{MatchJoin: join}}); err != nil {
		return fmt.Errorf("join match %s: %w", resp.MatchID, err)
	}

	c.roomMu.Lock()
	c.matchID, c.versionID = resp.MatchID, versionID
	c.roomMu.Unlock()
	c.logger.Info("joined prototype room",
		zap.String("prototype_version_id", versionID),
		zap.String("match_id", resp.MatchID),
		zap.Bool("created", resp.IsNew))

	return c.Emit(ctx, protocol.Message{Event: protocol.EventJoinPrototype, Payload: protocol.JoinPrototypeRequest{PrototypeVersionID: versionID}})
}

// VersionID returns the prototype version of the joined room.
func (c *Conn) VersionID() string {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.versionID
}

// Emit sends one message to the joined room. It does not wait for the
// room to apply it.
func (c *Conn) Emit(ctx context.Context, msg protocol.Message) error {
	c.roomMu.RLock()
	matchID := c.matchID
	c.roomMu.RUnlock()
	if matchID == "" {
		return ErrNotJoined
	}

	op, data, err := msg.Encode()
	if err != nil {
		return err
	}
	return c.write(&rtapi.Envelope{Message: &rtapi.Envelope_MatchDataSend{MatchDataSend: &rtapi.MatchDataSend{
		MatchId:  matchID,
		OpCode:   op,
		Data:     data,
		Reliable: true,
	}}})
}

// request sends env with a fresh cid and waits for the reply.
func (c *Conn) request(ctx context.Context, env *rtapi.Envelope) (*rtapi.Envelope, error) {
	cid := strconv.FormatUint(c.cid.Add(1), 10)
	env.Cid = cid
	ch := make(chan *rtapi.Envelope, 1)

	c.pendingMu.Lock()
	c.pending[cid] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, cid)
		c.pendingMu.Unlock()
	}()

	if err := c.write(env); err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		if e := reply.GetError(); e != nil {
			return nil, &ServerError{Code: e.GetCode(), Message: e.GetMessage()}
		}
		return reply, nil
	case <-c.done:
		return nil, c.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) write(env *rtapi.Envelope) error {
	data, err := marshalOpts.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return c.Err()
	default:
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.err = c.classify(err)
			if errors.Is(c.err, ErrUnexpectedDisconnect) {
				c.logger.Warn("socket disconnected", zap.Error(err))
			}
			return
		}

		env := &rtapi.Envelope{}
		if err := unmarshalOpts.Unmarshal(data, env); err != nil {
			c.logger.Warn("dropping malformed envelope", zap.Error(err))
			continue
		}
		c.dispatch(env)
	}
}

func (c *Conn) dispatch(env *rtapi.Envelope) {
	if cid := env.GetCid(); cid != "" {
		c.pendingMu.Lock()
		ch, ok := c.pending[cid]
		c.pendingMu.Unlock()
		if ok {
			ch <- env
			return
		}
	}

	switch msg := env.Message.(type) {
	case *rtapi.Envelope_MatchData:
		if c.handler == nil {
			return
		}
		md := msg.MatchData
		if err := c.handler(md.GetOpCode(), md.GetData()); err != nil {
			c.logger.Warn("match data rejected", zap.Int64("op_code", md.GetOpCode()), zap.Error(err))
		}
	case *rtapi.Envelope_Error:
		c.logger.Warn("server error", zap.Int32("code", msg.Error.GetCode()), zap.String("message", msg.Error.GetMessage()))
	}
}

// classify separates Close from a server close or transport failure.
func (c *Conn) classify(err error) error {
	if c.closing.Load() {
		return ErrClosed
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return fmt.Errorf("%w: server closed the socket", ErrUnexpectedDisconnect)
	}
	return fmt.Errorf("%w: %v", ErrUnexpectedDisconnect, err)
}

// Done is closed when the read goroutine exits.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns why the connection ended: nil while open, ErrClosed after
// Close, or an error wrapping ErrUnexpectedDisconnect.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close ends the connection normally.
func (c *Conn) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}

// Reconnect dials a new connection with the same settings and re-joins the
// prototype room. The new snapshot arrives through the handler.
func (c *Conn) Reconnect(ctx context.Context) (*Conn, error) {
	_ = c.Close()
	next, err := Dial(ctx, c.cfg, c.handler)
	if err != nil {
		return nil, err
	}
	if v := c.VersionID(); v != "" {
		if err := next.JoinPrototype(ctx, v); err != nil {
			_ = next.Close()
			return nil, err
		}
	}
	return next, nil
}

var _ Emitter = (*Conn)(nil)
