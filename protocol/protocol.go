// Package protocol 定义客户端与权威服务端之间的消息
package protocol

// 客户端 -> 服务端
const (
	MsgJoin    = "join"
	MsgMove    = "playerMove"
	MsgRespawn = "respawn"
)

// 服务端 -> 客户端
const (
	MsgWelcome            = "welcome"
	MsgCurrentPlayers     = "currentPlayers"
	MsgCurrentTerritories = "currentTerritories"
	MsgPlayerJoined       = "playerJoined"
	MsgPlayerMoved        = "playerMoved"
	MsgPlayerLeft         = "playerLeft"
	MsgPlayerRespawned    = "playerRespawned"
	MsgSnapshot           = "snapshot"
)

// 双向事件，两端载荷不同：客户端发送 HitRequest/CaptureRequest，
// 服务端广播 HitUpdate/CaptureUpdate
const (
	MsgPlayerHit         = "playerHit"
	MsgTerritoryCaptured = "territoryCaptured"
)

// Envelope 解码后的外层帧，P 保存仍按原编码的载荷
type Envelope struct {
	T string
	P []byte
}
