// Package wsremote is an Authority that talks to a gridrealm server over a
// websocket, one JSON REQ/RESP pair per operation.
package wsremote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/protocol"
	"gridrealm.dev/internal/world"
)

// DefaultPath is the server endpoint used when the address carries no path.
const DefaultPath = "/v1/ws"

const (
	handshakeTimeout = 10 * time.Second
	defaultTimeout   = 10 * time.Second
	writeWait        = 5 * time.Second
)

func init() {
	open := func(ctx context.Context, addr string) (authority.Authority, error) {
		return Dial(ctx, addr, "gridrealm")
	}
	authority.Register("ws", open)
	authority.Register("wss", open)
}

// ErrClosed is returned for requests issued after the connection dropped.
var ErrClosed = errors.New("wsremote: connection closed")

// ErrProtocol is returned when the server answers with a code outside the
// protocol's error vocabulary.
var ErrProtocol = errors.New("wsremote: protocol violation")

// RemoteError is a non-OK RESP. It unwraps to the matching authority
// sentinel when one exists.
type RemoteError struct {
	Op      string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case protocol.ErrConflict:
		return authority.ErrAccountExists
	case protocol.ErrNotFound:
		return authority.ErrNotFound
	case protocol.ErrBadRequest:
		return authority.ErrInvalid
	}
	return nil
}

type Client struct {
	conn   *websocket.Conn
	connID string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan protocol.RespMsg
	err     error

	done chan struct{}
}

// Dial connects to addr (ws:// or wss://) and completes the HELLO/WELCOME
// handshake.
func Dial(ctx context.Context, addr, clientName string) (*Client, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}
	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(handshakeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: clientName}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", welcome.Type)
	}
	if !protocol.IsSupportedVersion(welcome.ProtocolVersion) {
		_ = conn.Close()
		return nil, fmt.Errorf("unsupported protocol_version %q", welcome.ProtocolVersion)
	}
	_ = conn.SetWriteDeadline(time.Time{})
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:    conn,
		connID:  welcome.ConnID,
		pending: map[string]chan protocol.RespMsg{},
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// ConnID is the identifier the server assigned in WELCOME.
func (c *Client) ConnID() string { return c.connID }

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeResp {
			continue
		}
		var resp protocol.RespMsg
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		c.mu.Lock()
		ch := c.pending[resp.ReqID]
		delete(c.pending, resp.ReqID)
		c.mu.Unlock()
		if ch != nil {
			ch <- resp
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
}

func (c *Client) do(ctx context.Context, req protocol.ReqMsg) (protocol.RespMsg, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	req.ReqID = ulid.Make().String()
	ch := make(chan protocol.RespMsg, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return protocol.RespMsg{}, err
	}
	c.pending[req.ReqID] = ch
	c.mu.Unlock()
	forget := func() {
		c.mu.Lock()
		delete(c.pending, req.ReqID)
		c.mu.Unlock()
	}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		forget()
		c.fail(err)
		return protocol.RespMsg{}, fmt.Errorf("%s: %w", req.Op, err)
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			if resp.Code == "" || !protocol.IsKnownCode(resp.Code) {
				return resp, fmt.Errorf("%s: %w: unknown error code %q", req.Op, ErrProtocol, resp.Code)
			}
			return resp, &RemoteError{Op: req.Op, Code: resp.Code, Message: resp.Message}
		}
		return resp, nil
	case <-ctx.Done():
		forget()
		return protocol.RespMsg{}, fmt.Errorf("%s: %w", req.Op, ctx.Err())
	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return protocol.RespMsg{}, err
	}
}

func (c *Client) Login(ctx context.Context, username, password string) ([]authority.Match, error) {
	req := protocol.NewReq("", protocol.OpLogin)
	req.Credentials = &protocol.Credentials{Username: username, Password: password}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Matches == nil {
		return []authority.Match{}, nil
	}
	return resp.Matches, nil
}

func (c *Client) CreateAccount(ctx context.Context, username, password string) (world.EntityID, error) {
	req := protocol.NewReq("", protocol.OpCreateAccount)
	req.Credentials = &protocol.Credentials{Username: username, Password: password}
	resp, err := c.do(ctx, req)
	if err != nil {
		return 0, err
	}
	return resp.EntityID, nil
}

func (c *Client) Logout(ctx context.Context, id world.EntityID) error {
	req := protocol.NewReq("", protocol.OpLogout)
	req.EntityID = &id
	_, err := c.do(ctx, req)
	return err
}

func (c *Client) InsertCommand(ctx context.Context, cmd intent.Command) error {
	req := protocol.NewReq("", protocol.OpInsertCommand)
	req.Command = &cmd
	_, err := c.do(ctx, req)
	return err
}

func (c *Client) InsertChat(ctx context.Context, chat intent.Chat) error {
	req := protocol.NewReq("", protocol.OpInsertChat)
	req.Chat = &chat
	_, err := c.do(ctx, req)
	return err
}

func (c *Client) FetchWorldEntities(ctx context.Context, viewer world.EntityID) ([]world.Entity, error) {
	req := protocol.NewReq("", protocol.OpFetchEntities)
	req.EntityID = &viewer
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Entities == nil {
		return []world.Entity{}, nil
	}
	return resp.Entities, nil
}

func (c *Client) FetchChat(ctx context.Context, viewer world.EntityID) ([]world.ChatLine, error) {
	req := protocol.NewReq("", protocol.OpFetchChat)
	req.EntityID = &viewer
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Chat == nil {
		return []world.ChatLine{}, nil
	}
	return resp.Chat, nil
}

// Close sends a close frame and waits for the read loop to exit.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
