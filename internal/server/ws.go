package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gitlab.com/yelinaung/invoice-dashboard/internal/app"
	"gitlab.com/yelinaung/invoice-dashboard/internal/identity"
	"gitlab.com/yelinaung/invoice-dashboard/internal/invoices"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
	"gitlab.com/yelinaung/invoice-dashboard/internal/toast"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

// Feed message types.
const (
	MsgTypeInvoices = "invoices"
	MsgTypeToast    = "toast"
	MsgTypeUser     = "user"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// FeedMessage is one update pushed to the browser.
type FeedMessage struct {
	Type     string         `json:"type"`
	Invoices *invoiceFeed   `json:"invoices,omitempty"`
	Toast    *toast.Toast   `json:"toast,omitempty"`
	User     *identity.User `json:"user,omitempty"`
}

type invoiceFeed struct {
	invoices.State
	Error string `json:"error,omitempty"`
}

func invoicesMessage(st invoices.State) FeedMessage {
	return FeedMessage{Type: MsgTypeInvoices, Invoices: &invoiceFeed{State: st, Error: st.Error()}}
}

// feedClient is a middleman between the websocket connection and a root.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte

	// mu orders the initial snapshot against listener pushes.
	mu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// push queues msg. A slow client drops messages rather than block the
// root's listeners.
func (c *feedClient) push(msg FeedMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueue(msg)
}

func (c *feedClient) enqueue(msg FeedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Warn().Err(err).Str("type", msg.Type).Msg("Failed to encode feed message")
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		logger.Log.Warn().Str("type", msg.Type).Msg("Feed client too slow, dropping message")
	}
}

func (c *feedClient) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

// serveWS upgrades the request and streams the client's invoice state,
// session user and toast until the connection closes.
func (r *Router) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	root := rootFrom(req)
	c := &feedClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	unsubscribe := subscribeFeed(root, c)
	go c.writePump()
	c.readPump()
	unsubscribe()
}

// subscribeFeed registers the listeners before taking the initial
// snapshot, so no change between the two is lost.
func subscribeFeed(root *app.Root, c *feedClient) func() {
	offInvoices := root.Invoices.OnChange(func(st invoices.State) {
		c.push(invoicesMessage(st))
	})
	offToast := root.Toast.OnChange(func(t toast.Toast) {
		c.push(FeedMessage{Type: MsgTypeToast, Toast: &t})
	})
	offUser := root.Session.OnChange(func(u *identity.User) {
		c.push(FeedMessage{Type: MsgTypeUser, User: u})
	})

	c.mu.Lock()
	c.enqueue(FeedMessage{Type: MsgTypeUser, User: root.Session.User()})
	c.enqueue(invoicesMessage(root.Invoices.State()))
	c.enqueue(FeedMessage{Type: MsgTypeToast, Toast: ptr(root.Toast.Current())})
	c.mu.Unlock()

	return func() {
		offInvoices()
		offToast()
		offUser()
	}
}

func ptr[T any](v T) *T { return &v }

// readPump discards inbound messages and returns when the peer goes away.
func (c *feedClient) readPump() {
	defer func() {
		c.stop()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug().Err(err).Msg("Websocket closed unexpectedly")
			}
			return
		}
	}
}

// writePump pumps queued messages and pings to the connection.
func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.stop()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}
		}
	}
}
