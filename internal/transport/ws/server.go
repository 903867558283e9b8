// Package ws serves an Authority to remote clients over a websocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/persistence/journal"
	"gridrealm.dev/internal/protocol"
	"gridrealm.dev/internal/world"
)

const (
	requestTimeout = 10 * time.Second
	logoutTimeout  = 2 * time.Second
	idleTimeout    = 60 * time.Second
)

// Journal receives accepted writes.
type Journal interface {
	Append(journal.Entry) error
}

type Options struct {
	ServerName string
	RatePerSec float64
	RateBurst  int
	Journal    Journal
	Metrics    *Metrics
	Logger     logrus.FieldLogger
}

type Server struct {
	auth      authority.Authority
	opts      Options
	log       logrus.FieldLogger
	validator *protocol.Validator

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// conns are upgraded connections; http.Server.Shutdown does not see them.
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	closing  bool
	handlers sync.WaitGroup
}

func NewServer(auth authority.Authority, opts Options) (*Server, error) {
	v, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	if opts.ServerName == "" {
		opts.ServerName = "gridrealm"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 50
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 100
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Server{
		auth:      auth,
		opts:      opts,
		log:       opts.Logger.WithField("component", "ws"),
		validator: v,
		conns:     map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}, nil
}

// session is the per-connection state. It is only touched by the
// connection's reader goroutine.
type session struct {
	id      string
	bound   world.EntityID
	isBound bool
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if !s.track(conn) {
			return
		}
		defer s.untrack(conn)

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		s.opts.Metrics.Connections.Inc()
		defer s.opts.Metrics.Connections.Dec()
		sess.log = s.log.WithFields(logrus.Fields{"conn_id": sess.id, "remote": r.RemoteAddr})
		sess.log.Debug("client connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.handle(ctx, sess, msg)
			if err := writeJSON(conn, resp); err != nil {
				break
			}
		}

		cancel()
		s.release(sess)
		sess.log.Debug("client disconnected")
	}
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.handlers.Done()
}

// Shutdown refuses new connections, closes the open ones and waits until
// every handler has released its account, or ctx is done. Call it before
// closing the authority or the journal.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	if err := s.validator.ValidateHello(msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if !protocol.IsSupportedVersion(hello.ProtocolVersion) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	sess := &session{
		id:      fmt.Sprintf("C%d", s.nextID.Add(1)),
		limiter: rate.NewLimiter(rate.Limit(s.opts.RatePerSec), s.opts.RateBurst),
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ServerName:      s.opts.ServerName,
		ConnID:          sess.id,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

// release logs out the account bound to a closed connection.
func (s *Server) release(sess *session) {
	if !sess.isBound {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()
	if err := s.auth.Logout(ctx, sess.bound); err != nil && !errors.Is(err, authority.ErrNotFound) {
		sess.log.WithError(err).Warn("logout on disconnect failed")
	}
}

func (s *Server) handle(ctx context.Context, sess *session, msg []byte) protocol.RespMsg {
	var req protocol.ReqMsg
	resp := s.dispatch(ctx, sess, msg, &req)
	code := resp.Code
	if resp.OK {
		code = "OK"
	}
	op := req.Op
	if op == "" {
		op = "UNKNOWN"
	}
	s.opts.Metrics.Requests.WithLabelValues(op, code).Inc()
	return resp
}

func (s *Server) dispatch(ctx context.Context, sess *session, msg []byte, req *protocol.ReqMsg) protocol.RespMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeReq || !protocol.IsSupportedVersion(base.ProtocolVersion) {
		_ = json.Unmarshal(msg, req)
		req.Op = ""
		return protocol.ErrResp(req.ReqID, protocol.ErrProtoBadRequest, "expected REQ with protocol_version "+protocol.Version)
	}
	if err := s.validator.ValidateReq(msg); err != nil {
		_ = json.Unmarshal(msg, req)
		req.Op = ""
		return protocol.ErrResp(req.ReqID, protocol.ErrBadRequest, err.Error())
	}
	if err := json.Unmarshal(msg, req); err != nil {
		return protocol.ErrResp("", protocol.ErrBadRequest, err.Error())
	}
	if !sess.limiter.Allow() {
		return protocol.ErrResp(req.ReqID, protocol.ErrRateLimit, "slow down")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch req.Op {
	case protocol.OpLogin:
		return s.login(ctx, sess, req)
	case protocol.OpCreateAccount:
		return s.createAccount(ctx, sess, req)
	}

	if !sess.isBound {
		return protocol.ErrResp(req.ReqID, protocol.ErrUnauthenticated, "LOGIN or CREATE_ACCOUNT first")
	}
	owner := func(id world.EntityID) *protocol.RespMsg {
		if id == sess.bound {
			return nil
		}
		r := protocol.ErrResp(req.ReqID, protocol.ErrNoPermission, fmt.Sprintf("entity %d is not yours", id))
		return &r
	}

	switch req.Op {
	case protocol.OpLogout:
		if r := owner(*req.EntityID); r != nil {
			return *r
		}
		if err := s.auth.Logout(ctx, sess.bound); err != nil {
			return s.errResp(sess, req.ReqID, err)
		}
		sess.isBound = false
		return protocol.OKResp(req.ReqID)

	case protocol.OpInsertCommand:
		if r := owner(req.Command.Entity); r != nil {
			return *r
		}
		if err := s.auth.InsertCommand(ctx, *req.Command); err != nil {
			return s.errResp(sess, req.ReqID, err)
		}
		s.record(sess, journal.Entry{Op: req.Op, EntityID: sess.bound, Command: req.Command})
		return protocol.OKResp(req.ReqID)

	case protocol.OpInsertChat:
		if r := owner(req.Chat.Speaker); r != nil {
			return *r
		}
		if err := s.auth.InsertChat(ctx, *req.Chat); err != nil {
			return s.errResp(sess, req.ReqID, err)
		}
		s.record(sess, journal.Entry{Op: req.Op, EntityID: sess.bound, Chat: req.Chat})
		return protocol.OKResp(req.ReqID)

	case protocol.OpFetchEntities:
		if r := owner(*req.EntityID); r != nil {
			return *r
		}
		ents, err := s.auth.FetchWorldEntities(ctx, sess.bound)
		if err != nil {
			return s.errResp(sess, req.ReqID, err)
		}
		resp := protocol.OKResp(req.ReqID)
		resp.Entities = ents
		return resp

	case protocol.OpFetchChat:
		if r := owner(*req.EntityID); r != nil {
			return *r
		}
		lines, err := s.auth.FetchChat(ctx, sess.bound)
		if err != nil {
			return s.errResp(sess, req.ReqID, err)
		}
		resp := protocol.OKResp(req.ReqID)
		resp.Chat = lines
		return resp
	}
	return protocol.ErrResp(req.ReqID, protocol.ErrBadRequest, "unknown op "+req.Op)
}

func (s *Server) login(ctx context.Context, sess *session, req *protocol.ReqMsg) protocol.RespMsg {
	if sess.isBound {
		return protocol.ErrResp(req.ReqID, protocol.ErrBadRequest, "session already established")
	}
	matches, err := s.auth.Login(ctx, req.Credentials.Username, req.Credentials.Password)
	if err != nil {
		return s.errResp(sess, req.ReqID, err)
	}
	// The store claims an account that was free; only then does this
	// connection own it.
	if len(matches) == 1 && !matches[0].LoggedIn {
		sess.bound, sess.isBound = matches[0].EntityID, true
		sess.log = sess.log.WithField("entity_id", sess.bound)
		sess.log.Info("session bound")
	}
	resp := protocol.OKResp(req.ReqID)
	resp.Matches = matches
	return resp
}

func (s *Server) createAccount(ctx context.Context, sess *session, req *protocol.ReqMsg) protocol.RespMsg {
	if sess.isBound {
		return protocol.ErrResp(req.ReqID, protocol.ErrBadRequest, "session already established")
	}
	id, err := s.auth.CreateAccount(ctx, req.Credentials.Username, req.Credentials.Password)
	if err != nil {
		return s.errResp(sess, req.ReqID, err)
	}
	sess.bound, sess.isBound = id, true
	sess.log = sess.log.WithField("entity_id", id)
	sess.log.Info("account created")
	resp := protocol.OKResp(req.ReqID)
	resp.EntityID = id
	return resp
}

func (s *Server) record(sess *session, e journal.Entry) {
	if s.opts.Journal == nil {
		return
	}
	e.ConnID = sess.id
	if err := s.opts.Journal.Append(e); err != nil {
		sess.log.WithError(err).Warn("journal append failed")
	}
}

func (s *Server) errResp(sess *session, reqID string, err error) protocol.RespMsg {
	switch {
	case errors.Is(err, authority.ErrAccountExists):
		return protocol.ErrResp(reqID, protocol.ErrConflict, err.Error())
	case errors.Is(err, authority.ErrNotFound):
		return protocol.ErrResp(reqID, protocol.ErrNotFound, err.Error())
	case errors.Is(err, authority.ErrInvalid):
		return protocol.ErrResp(reqID, protocol.ErrBadRequest, err.Error())
	default:
		sess.log.WithError(err).Error("authority call failed")
		return protocol.ErrResp(reqID, protocol.ErrInternal, "internal error")
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
