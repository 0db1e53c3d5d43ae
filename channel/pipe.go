package channel

import (
	"github.com/yaoapp/kun/log"
)

// Pipe create two connected in-memory ports.
// Every posted message is encoded and decoded again, nothing is shared by pointer.
func Pipe(name string) (Port, Port) {
	l := &link{stop: make(chan struct{})}
	a := &pipe{name: name + ".0", inbox: newQueue(), link: l}
	b := &pipe{name: name + ".1", inbox: newQueue(), link: l}
	a.init()
	b.init()
	a.peer = b
	b.peer = a
	go a.deliver()
	go b.deliver()
	return a, b
}

// Post encode the message and queue it for the peer
func (p *pipe) Post(message *Message) error {
	data, err := Encode(message)
	if err != nil {
		return err
	}

	if !p.peer.inbox.push(data) {
		return ErrClosed
	}
	return nil
}

// Close both sides of the pipe, queued messages are dropped
func (p *pipe) Close() error {
	p.link.once.Do(func() {
		close(p.link.stop)
		p.inbox.close()
		p.peer.inbox.close()
	})
	return nil
}

// deliver the queued messages to the listener in order.
// Nothing is delivered until a listener is attached.
func (p *pipe) deliver() {
	select {
	case <-p.ready:
	case <-p.link.stop:
		return
	}

	for {
		data, ok := p.inbox.pop()
		if !ok {
			return
		}

		message, err := Decode(data)
		if err != nil {
			log.Error("[channel] %s decode: %s", p.name, err.Error())
			continue
		}
		p.emit(message)
	}
}
