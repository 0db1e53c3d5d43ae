package channel

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"
)

const (
	maxMessage      = 10485760 // 10 M
	readBufferSize  = 1024
	writeBufferSize = 1024
	timeout         = 5
)

// DefaultLimit the default connection limit
var DefaultLimit = Limit{WriteWait: 10, PongWait: 60, MaxMessage: maxMessage}

// NewUpgrader create a new websocket upgrader, every accepted connection is handed to onConnect as a port
func NewUpgrader(name string, onConnect func(port Port), config ...[]byte) (*Upgrader, error) {

	// the default values
	var upgrader = &Upgrader{
		name:      name,
		Name:      name,
		Buffer:    BufferSize{Read: readBufferSize, Write: writeBufferSize},
		Limit:     DefaultLimit,
		Protocols: []string{},
		Timeout:   timeout,
		onConnect: onConnect,
	}

	// load from config json
	if len(config) > 0 && config[0] != nil {
		err := jsoniter.Unmarshal(config[0], upgrader)
		if err != nil {
			return nil, err
		}
	}

	if upgrader.onConnect == nil {
		upgrader.onConnect = func(port Port) { port.Close() }
	}

	upgrader.up = &websocket.Upgrader{
		ReadBufferSize:   upgrader.Buffer.Read,
		WriteBufferSize:  upgrader.Buffer.Write,
		HandshakeTimeout: time.Duration(upgrader.Timeout) * time.Second,
		Subprotocols:     upgrader.Protocols,
		CheckOrigin:      func(r *http.Request) bool { return true },
		Error: func(_ http.ResponseWriter, _ *http.Request, status int, reason error) {
			log.Error("[channel] upgrader: %s [%d]%s", name, status, reason.Error())
		},
	}

	return upgrader, nil
}

// Path the route path of the upgrader
func (upgrader *Upgrader) Path() string {
	return fmt.Sprintf("/duet/%s", upgrader.name)
}

// SetRouter upgrades the Gin server connection to the WebSocket protocol.
func (upgrader *Upgrader) SetRouter(r *gin.Engine) {
	r.GET(upgrader.Path(), func(c *gin.Context) {
		upgrader.Accept(c.Writer, c.Request)
	})
}

// Accept upgrades the HTTP server connection and hands the port to the connect handler
func (upgrader *Upgrader) Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.up.Upgrade(w, r, nil)
	if err != nil {
		log.Error("[channel] upgrader: %s [500]%s", upgrader.name, err.Error())
		return nil, err
	}

	conn := newConn(upgrader.name, ws, upgrader.Limit)
	upgrader.onConnect(conn)
	return conn, nil
}

// Dial connect to a websocket port
func Dial(url string, protocols []string, limit ...Limit) (*Conn, error) {

	var dialer = websocket.Dialer{
		Subprotocols:     protocols,
		ReadBufferSize:   readBufferSize,
		WriteBufferSize:  writeBufferSize,
		HandshakeTimeout: timeout * time.Second,
	}

	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		log.Error("[channel] dial %s: %v", url, err)
		return nil, err
	}

	l := DefaultLimit
	if len(limit) > 0 {
		l = limit[0]
	}
	return newConn(url, ws, l), nil
}

func newConn(name string, ws *websocket.Conn, limit Limit) *Conn {
	if limit.WriteWait == 0 {
		limit.WriteWait = DefaultLimit.WriteWait
	}
	if limit.PongWait == 0 {
		limit.PongWait = DefaultLimit.PongWait
	}
	if limit.MaxMessage == 0 {
		limit.MaxMessage = DefaultLimit.MaxMessage
	}

	conn := &Conn{
		name:   name,
		conn:   ws,
		limit:  limit,
		outbox: newQueue(),
		inbox:  newQueue(),
		done:   make(chan struct{}),
	}
	conn.init()

	go conn.writePump()
	go conn.readPump()
	go conn.deliver()
	return conn
}

// Post queue the message for the writer
func (c *Conn) Post(message *Message) error {
	data, err := Encode(message)
	if err != nil {
		return err
	}
	if !c.outbox.push(data) {
		return ErrClosed
	}
	return nil
}

// Close the connection
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.outbox.close()
		c.inbox.close()
		err = c.conn.Close()
	})
	return err
}

// Done closed when the connection is closed
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// writePump pumps messages from the outbox to the websocket connection.
// It is the only writer of the connection, so frames leave in post order.
func (c *Conn) writePump() {
	writes := make(chan []byte)
	go func() {
		defer close(writes)
		for {
			data, ok := c.outbox.pop()
			if !ok {
				return
			}
			select {
			case writes <- data:
			case <-c.done:
				return
			}
		}
	}()

	pongWait := time.Duration(c.limit.PongWait) * time.Second
	writeWait := time.Duration(c.limit.WriteWait) * time.Second
	ticker := time.NewTicker((pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-writes:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error("[channel] %s write: %s", c.name, err.Error())
				return
			}
			log.Trace("[channel] %s write: %s", c.name, data)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// readPump pumps messages from the websocket connection to the inbox.
func (c *Conn) readPump() {
	defer c.Close()

	pongWait := time.Duration(c.limit.PongWait) * time.Second
	c.conn.SetReadLimit(int64(c.limit.MaxMessage))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error("[channel] %s read: %s", c.name, err.Error())
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if !c.inbox.push(data) {
			return
		}
	}
}

// deliver the received messages to the listener in order
func (c *Conn) deliver() {
	select {
	case <-c.ready:
	case <-c.done:
		return
	}

	for {
		data, ok := c.inbox.pop()
		if !ok {
			return
		}

		message, err := Decode(data)
		if err != nil {
			log.Error("[channel] %s decode: %s", c.name, err.Error())
			continue
		}
		c.emit(message)
	}
}
