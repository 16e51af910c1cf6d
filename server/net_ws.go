package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"geoarena/logging"
	"geoarena/protocol"
)

// ErrSendQueueFull 发送队列已满，该帧被丢弃
var ErrSendQueueFull = errors.New("send queue full")

// ErrConnClosed 连接关闭后再发送
var ErrConnClosed = errors.New("connection closed")

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	maxFrameSize = 1 << 20
	sendQueueLen = 64
)

// ClientConn 负责发送数据到客户端的轻量包装，由 writePump 消费有界发送队列
type ClientConn struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	frameType int
}

func NewClientConn(ws *websocket.Conn, codec protocol.Codec) *ClientConn {
	frameType := websocket.TextMessage
	if codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	return &ClientConn{
		ws:        ws,
		send:      make(chan []byte, sendQueueLen),
		done:      make(chan struct{}),
		frameType: frameType,
	}
}

// Send 非阻塞入队，房间循环不能被慢客户端拖住
func (c *ClientConn) Send(b []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// Close 结束写协程并关闭底层连接，可重复调用
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *ClientConn) writePump() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(c.frameType, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 把每一帧交给房间；连接出错退出时通知房间移除该玩家
func (c *ClientConn) readPump(room *Room, id string) {
	defer room.RequestLeave(id)
	defer c.Close()
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Log.Debugf("read %s: %v", id, err)
			}
			return
		}
		room.Deliver(id, payload)
	}
}

// OriginChecker 无 Origin 头的请求放行；allowed 含 "*" 时放行所有来源，否则只放行列表中的来源
func OriginChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// WSHandler WebSocket 接入：/ws?room=<id>&codec=<json|msgpack>
type WSHandler struct {
	rooms    *RoomManager
	upgrader websocket.Upgrader
}

func NewWSHandler(rooms *RoomManager, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     OriginChecker(allowedOrigins),
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codec := protocol.CodecByName(q.Get("codec"))

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Warnf("upgrade error: %v", err)
		return
	}

	room := h.rooms.GetOrCreateRoom(q.Get("room"))
	client := NewClientConn(ws, codec)
	id, err := room.Connect(client, codec)
	if err != nil {
		_ = client.Close()
		logging.Log.Warnf("attach to room %s: %v", room.ID, err)
		return
	}
	logging.Log.Infof("ws connected: room=%s id=%s remote=%s codec=%s", room.ID, id, r.RemoteAddr, codec.Name())

	go client.writePump()
	go client.readPump(room, id)
}
