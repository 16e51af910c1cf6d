package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"geoarena/geo"
	"geoarena/logging"
	"geoarena/protocol"
)

// ErrSendQueueFull 发送队列已满，该帧被丢弃
var ErrSendQueueFull = errors.New("send queue full")

const (
	writeWait    = 5 * time.Second
	sendQueueLen = 64
	recvQueueLen = 256
)

// Conn 到游戏服务端的 WebSocket 连接，实现 Emitter，并把收到的帧交给 Runner
type Conn struct {
	ws        *websocket.Conn
	codec     protocol.Codec
	frameType int
	log       *zap.SugaredLogger

	send      chan []byte
	recv      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Dial 连接 serverURL（ws:// 或 wss://，含路径），通过 codec 参数选择编码
func Dial(ctx context.Context, serverURL string, codec protocol.Codec) (*Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("codec", codec.Name())
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	frameType := websocket.TextMessage
	if codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	c := &Conn{
		ws:        ws,
		codec:     codec,
		frameType: frameType,
		log:       logging.Log.With("server", u.Host),
		send:      make(chan []byte, sendQueueLen),
		recv:      make(chan []byte, recvQueueLen),
		done:      make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

func (c *Conn) Codec() protocol.Codec { return c.codec }
func (c *Conn) Incoming() <-chan []byte { return c.recv }
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(c.frameType, msg); err != nil {
				c.log.Debugf("write: %v", err)
				return
			}
		}
	}
}

func (c *Conn) readPump() {
	defer c.Close()
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debugf("read: %v", err)
			}
			return
		}
		select {
		case c.recv <- payload:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) emit(t string, payload any) error {
	b, err := c.codec.Encode(t, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *Conn) EmitJoin(name string, pos geo.LatLng) error {
	return c.emit(protocol.MsgJoin, protocol.Join{Name: name, Position: pos})
}

func (c *Conn) EmitMove(pos geo.LatLng) error {
	return c.emit(protocol.MsgMove, pos)
}

func (c *Conn) EmitHit(targetID, projectileID string) error {
	return c.emit(protocol.MsgPlayerHit, protocol.HitRequest{TargetID: targetID, ProjectileID: projectileID})
}

func (c *Conn) EmitCapture(territoryID, ownerID string) error {
	return c.emit(protocol.MsgTerritoryCaptured, protocol.CaptureRequest{TerritoryID: territoryID, OwnerID: ownerID})
}

func (c *Conn) EmitRespawn(pos geo.LatLng) error {
	return c.emit(protocol.MsgRespawn, pos)
}
