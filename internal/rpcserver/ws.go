package rpcserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"escrow-lab/internal/observability"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/svm"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 1 << 20
)

// wsConn is one WebSocket client and its log subscriptions.
type wsConn struct {
	srv  *Server
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[uint64]*svm.Subscription
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	c := &wsConn{srv: s, conn: conn, subs: make(map[uint64]*svm.Subscription)}
	s.trackConn(c, true)
	defer s.trackConn(c, false)
	defer c.close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		c.handle(msg)
	}
}

func (c *wsConn) handle(msg []byte) {
	var req solana.RPCRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		c.reply(errorResponse(nil, &solana.RPCError{Code: solana.CodeParseError, Message: "Parse error"}))
		return
	}

	start := time.Now()
	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case "logsSubscribe":
		var id uint64
		id, err = c.subscribe(req.Params)
		if err == nil {
			// The confirmation must precede the first notification
			result = id
			c.reply(resultResponse(req.ID, result))
			observability.RecordRPCRequest(req.Method, true, time.Since(start))
			c.startPump(id)
			return
		}
	case "logsUnsubscribe":
		result, err = c.unsubscribe(req.Params)
	default:
		observability.RecordRPCRequest("unknown", false, 0)
		c.reply(errorResponse(req.ID, &solana.RPCError{Code: solana.CodeMethodNotFound, Message: "Method not found"}))
		return
	}

	observability.RecordRPCRequest(req.Method, err == nil, time.Since(start))
	if err != nil {
		c.reply(errorResponse(req.ID, toRPCError(err)))
		return
	}
	c.reply(resultResponse(req.ID, result))
}

// subscribe parses a logsSubscribe filter: "all", "allWithVotes" or
// {"mentions": [keys]}.
func (c *wsConn) subscribe(params []json.RawMessage) (uint64, error) {
	if len(params) == 0 {
		return 0, invalidParams("missing parameter filter")
	}

	var filter solana.LogsFilter
	var kind string
	if err := json.Unmarshal(params[0], &kind); err == nil {
		if kind != "all" && kind != "allWithVotes" {
			return 0, invalidParams("Invalid param: unknown filter %q", kind)
		}
	} else {
		var obj struct {
			Mentions []string `json:"mentions"`
		}
		if err := json.Unmarshal(params[0], &obj); err != nil || len(obj.Mentions) == 0 {
			return 0, invalidParams("Invalid param: filter must be \"all\" or {\"mentions\": [...]}")
		}
		for _, m := range obj.Mentions {
			if _, err := solana.ParsePublicKey(m); err != nil {
				return 0, invalidParams("Invalid param: %v", err)
			}
		}
		filter.Mentions = obj.Mentions
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, &solana.RPCError{Code: solana.CodeInternalError, Message: "connection closed"}
	}
	sub := c.srv.ledger.Subscribe(filter)
	c.subs[sub.ID] = sub
	observability.AddWSSubscriptions(1)
	return sub.ID, nil
}

func (c *wsConn) unsubscribe(params []json.RawMessage) (bool, error) {
	var id uint64
	if err := param(params, 0, "subscription", &id); err != nil {
		return false, err
	}

	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()

	if !ok {
		return false, invalidParams("Invalid subscription id.")
	}
	sub.Close()
	observability.AddWSSubscriptions(-1)
	return true, nil
}

// startPump forwards notifications of subscription id until it is closed.
func (c *wsConn) startPump(id uint64) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for n := range sub.Notifications() {
			if err := c.write(solana.NewLogsNotification(id, n)); err != nil {
				c.srv.logger.Debug("websocket write failed", zap.Uint64("subscription", id), zap.Error(err))
				return
			}
		}
		if sub.Lagged() {
			c.dropLagging(id)
		}
	}()
}

// dropLagging closes a connection whose subscription fell too far behind.
// The read loop then releases the remaining subscriptions.
func (c *wsConn) dropLagging(id uint64) {
	c.srv.logger.Warn("closing lagging websocket client", zap.Uint64("subscription", id))
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscription lagged")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
	c.writeMu.Unlock()
	c.conn.Close()
}

func (c *wsConn) reply(resp *solana.RPCResponse) {
	if err := c.write(resp); err != nil {
		c.srv.logger.Debug("websocket reply failed", zap.Error(err))
	}
}

func (c *wsConn) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

// close releases every subscription and the connection.
func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()

		for _, sub := range subs {
			sub.Close()
		}
		observability.AddWSSubscriptions(-len(subs))

		c.conn.Close()
		c.wg.Wait()
	})
}

func resultResponse(id json.RawMessage, result interface{}) *solana.RPCResponse {
	encoded, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, &solana.RPCError{Code: solana.CodeInternalError, Message: "Internal error"})
	}
	return &solana.RPCResponse{JSONRPC: "2.0", ID: id, Result: encoded}
}
