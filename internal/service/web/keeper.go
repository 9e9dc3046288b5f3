package web

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait       = time.Second
	deadlineSeconds = 5
)

// client is one websocket connection and the topics it listens to.
type client struct {
	conn   *websocket.Conn
	wmx    sync.Mutex
	topics map[string]struct{}
}

func (c *client) write(data []byte) error {
	c.wmx.Lock()
	defer c.wmx.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type keeper struct {
	mx      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func newKeeper() *keeper {
	return &keeper{
		clients: make(map[*websocket.Conn]*client),
	}
}

func (k *keeper) addConn(conn *websocket.Conn) *client {
	k.mx.Lock()
	defer k.mx.Unlock()

	c := &client{conn: conn, topics: make(map[string]struct{})}
	k.clients[conn] = c
	return c
}

func (k *keeper) subscribe(c *client, topic string) {
	k.mx.Lock()
	defer k.mx.Unlock()
	c.topics[topic] = struct{}{}
}

// subscribers returns clients listening to topic.
func (k *keeper) subscribers(topic string) []*client {
	k.mx.RLock()
	defer k.mx.RUnlock()

	subs := make([]*client, 0)
	for _, c := range k.clients {
		if _, ok := c.topics[topic]; ok {
			subs = append(subs, c)
		}
	}
	return subs
}

func (k *keeper) count() int {
	k.mx.RLock()
	defer k.mx.RUnlock()
	return len(k.clients)
}

func (k *keeper) close(conn *websocket.Conn) {
	k.mx.Lock()
	defer k.mx.Unlock()

	_ = conn.Close()
	delete(k.clients, conn)
}

func (k *keeper) closeAll() {
	k.mx.Lock()
	defer k.mx.Unlock()

	for conn := range k.clients {
		_ = conn.Close()
		delete(k.clients, conn)
	}
}

func (k *keeper) keep(c *client) {
	conn := c.conn
	pinger := time.NewTicker(time.Second)
	defer pinger.Stop()

	var lastAlive atomic.Int64
	lastAlive.Store(time.Now().UnixNano())
	read := make(chan msg)
	defer k.close(conn)

	ponger := conn.PongHandler()
	conn.SetPongHandler(func(appData string) error {
		lastAlive.Store(time.Now().UnixNano())
		return ponger(appData)
	})

	go func() {
		defer close(read)
		for {
			mt, data, err := conn.ReadMessage()
			read <- msg{
				mType: mt,
				data:  data,
				err:   err,
			}
			if err != nil {
				return
			}
		}
	}()

	// drain the reader so it can exit after we return
	defer func() {
		go func() {
			for range read {
			}
		}()
	}()

	for {
		select {
		case <-pinger.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
			if time.Since(time.Unix(0, lastAlive.Load())).Seconds() > deadlineSeconds {
				return
			}
		case msg, ok := <-read:
			if !ok || msg.err != nil {
				return
			}

			switch msg.mType {
			case websocket.CloseMessage:
				return
			case websocket.TextMessage:
				topic := string(msg.data)
				if topic == "" {
					continue
				}
				k.subscribe(c, topic)
			}

			lastAlive.Store(time.Now().UnixNano())
		}
	}
}
