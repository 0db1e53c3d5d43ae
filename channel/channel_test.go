package channel

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(port Port, n int) (func() []*Message, *sync.WaitGroup) {
	var mutex sync.Mutex
	var wg sync.WaitGroup
	wg.Add(n)
	messages := []*Message{}
	port.Listen(func(message *Message) {
		mutex.Lock()
		messages = append(messages, message)
		mutex.Unlock()
		wg.Done()
	})
	return func() []*Message {
		mutex.Lock()
		defer mutex.Unlock()
		return messages
	}, &wg
}

func wait(t *testing.T, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for messages")
	}
}

func TestPipeOrder(t *testing.T) {
	a, b := Pipe("unit-test")
	defer a.Close()

	messages, wg := collect(b, 200)
	for i := 0; i < 200; i++ {
		require.Nil(t, a.Post(&Message{Name: "seq", Data: []interface{}{i}}))
	}
	wait(t, wg)

	for i, message := range messages() {
		assert.Equal(t, "seq", message.Name)
		assert.Equal(t, float64(i), message.Data[0])
	}
}

func TestPipeHoldUntilListen(t *testing.T) {
	a, b := Pipe("unit-test")
	defer a.Close()

	a.Post(&Message{Name: "first"})
	a.Post(&Message{Name: "second"})
	time.Sleep(20 * time.Millisecond)

	messages, wg := collect(b, 2)
	wait(t, wg)
	assert.Equal(t, "first", messages()[0].Name)
	assert.Equal(t, "second", messages()[1].Name)
}

func TestPipeDuplex(t *testing.T) {
	a, b := Pipe("unit-test")
	defer a.Close()

	fromA, wgA := collect(b, 1)
	fromB, wgB := collect(a, 1)
	a.Post(&Message{Name: "ping"})
	b.Post(&Message{Name: "pong"})
	wait(t, wgA)
	wait(t, wgB)
	assert.Equal(t, "ping", fromA()[0].Name)
	assert.Equal(t, "pong", fromB()[0].Name)
}

func TestPipeNoSharedMemory(t *testing.T) {
	a, b := Pipe("unit-test")
	defer a.Close()

	payload := map[string]interface{}{"value": "origin"}
	messages, wg := collect(b, 1)
	a.Post(&Message{Name: "clone", Data: []interface{}{payload}})
	payload["value"] = "changed"
	wait(t, wg)

	received := messages()[0].Data[0].(map[string]interface{})
	assert.Equal(t, "origin", received["value"])
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe("unit-test")
	assert.Nil(t, a.Close())
	assert.Nil(t, b.Close())
	assert.ErrorIs(t, a.Post(&Message{Name: "late"}), ErrClosed)
	assert.ErrorIs(t, b.Post(&Message{Name: "late"}), ErrClosed)
}

func TestBind(t *testing.T) {
	var res struct {
		ID   int               `json:"id"`
		Tags map[string]string `json:"tags"`
	}
	err := Bind(map[string]interface{}{"id": float64(7), "tags": map[string]interface{}{"a": "b"}}, &res)
	assert.Nil(t, err)
	assert.Equal(t, 7, res.ID)
	assert.Equal(t, "b", res.Tags["a"])
}

func TestWebSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	serverMessages := make(chan *Message, 10)
	upgrader, err := NewUpgrader("unit-test", func(port Port) {
		port.Listen(func(message *Message) {
			serverMessages <- message
			port.Post(&Message{Name: "echo", Data: message.Data})
		})
	}, []byte(`{"protocols": ["duet-01"], "limit": {"pong-wait": 5}}`))
	require.Nil(t, err)
	assert.Equal(t, 5, upgrader.Limit.PongWait)
	assert.Equal(t, "/duet/unit-test", upgrader.Path())
	upgrader.SetRouter(router)

	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + upgrader.Path()
	conn, err := Dial(url, []string{"duet-01"})
	require.Nil(t, err)
	defer conn.Close()

	messages, wg := collect(conn, 3)
	for i := 0; i < 3; i++ {
		require.Nil(t, conn.Post(&Message{Name: "hello", Data: []interface{}{i}}))
	}
	wait(t, wg)

	for i, message := range messages() {
		assert.Equal(t, "echo", message.Name)
		assert.Equal(t, float64(i), message.Data[0])
	}

	for i := 0; i < 3; i++ {
		message := <-serverMessages
		assert.Equal(t, "hello", message.Name)
	}

	conn.Close()
	assert.ErrorIs(t, conn.Post(&Message{Name: "late"}), ErrClosed)
}
