package channel

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Message the only unit carried by a port
type Message struct {
	Name  string        `json:"name"`
	RetID string        `json:"retId,omitempty"`
	Data  []interface{} `json:"data"`
}

// Port one side of a duplex channel between two isolates.
// Messages posted on a port are delivered to the peer's listener in post order.
type Port interface {
	Post(message *Message) error
	Listen(listener func(message *Message))
	Close() error
}

// listeners the listener slot shared by the port implementations
type listeners struct {
	fn    func(message *Message)
	ready chan struct{}
	once  sync.Once
	mutex sync.RWMutex
}

// queue an unbounded FIFO of encoded messages
type queue struct {
	items  [][]byte
	closed bool
	mutex  sync.Mutex
	cond   *sync.Cond
}

// pipe an in-memory port, one side of Pipe()
type pipe struct {
	name  string
	peer  *pipe
	inbox *queue
	link  *link
	listeners
}

// link the state shared by both sides of a pipe
type link struct {
	stop chan struct{}
	once sync.Once
}

// Conn a websocket port
type Conn struct {
	name   string
	conn   *websocket.Conn
	limit  Limit
	outbox *queue
	inbox  *queue
	done   chan struct{}
	once   sync.Once
	listeners
}

// Upgrader the websocket upgrader setting
// {
// 		"name": "main-thread",
// 		"protocols": ["duet-01"],
// 		"buffer": { "read": 1024, "write": 1024 },
// 		"limit": { "write-wait": 10, "pong-wait": 60, "max-message": 10485760 },
// 		"timeout": 5
// }
type Upgrader struct {
	name      string
	Name      string     `json:"name,omitempty"`
	Protocols []string   `json:"protocols,omitempty"`
	Buffer    BufferSize `json:"buffer,omitempty"`
	Limit     Limit      `json:"limit,omitempty"`
	Timeout   int        `json:"timeout,omitempty"`
	onConnect func(port Port)
	up        *websocket.Upgrader
}

// BufferSize read and write buffer sizes
type BufferSize struct {
	Read  int `json:"read,omitempty"`
	Write int `json:"write,omitempty"`
}

// Limit the limit of a connection
type Limit struct {
	WriteWait  int `json:"write-wait,omitempty"`  // Time allowed to write a message to the peer. seconds
	PongWait   int `json:"pong-wait,omitempty"`   // Time allowed to read the next pong message from the peer. seconds
	MaxMessage int `json:"max-message,omitempty"` // Maximum message size allowed from peer. bytes
}
