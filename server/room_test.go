package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"geoarena/config"
	"geoarena/geo"
	"geoarena/protocol"
)

type fakeConn struct {
	sendCh chan []byte

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{sendCh: make(chan []byte, 64)}
}

func (f *fakeConn) Send(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case f.sendCh <- cp:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestRoom(t *testing.T, snapshotEvery time.Duration) *Room {
	t.Helper()
	r := NewRoom("test", config.DefaultRules(), DefaultLayout(origin), snapshotEvery)
	r.Start()
	t.Cleanup(r.Stop)
	return r
}

// expect 等待下一帧类型为 want 的消息，跳过其他
func expect(t *testing.T, fc *fakeConn, codec protocol.Codec, want string) protocol.Envelope {
	t.Helper()
	timeout := time.After(500 * time.Millisecond)
	for {
		select {
		case b := <-fc.sendCh:
			env, err := codec.DecodeEnvelope(b)
			if err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.T == want {
				return env
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

// drainTypes 返回目前已入队的所有帧类型
func drainTypes(t *testing.T, fc *fakeConn, codec protocol.Codec) []string {
	t.Helper()
	var out []string
	for {
		select {
		case b := <-fc.sendCh:
			env, err := codec.DecodeEnvelope(b)
			if err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			out = append(out, env.T)
		default:
			return out
		}
	}
}

func deliver(t *testing.T, r *Room, id string, codec protocol.Codec, typ string, payload any) {
	t.Helper()
	b, err := codec.Encode(typ, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", typ, err)
	}
	r.Deliver(id, b)
}

// settle 等待之前投递的命令全部处理完
func settle(t *testing.T, r *Room) RoomStats {
	t.Helper()
	st, err := r.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	return st
}

func joinRoom(t *testing.T, r *Room, name string, codec protocol.Codec) (*fakeConn, string) {
	t.Helper()
	fc := newFakeConn()
	id, err := r.Connect(fc, codec)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	welcome, err := protocol.DecodePayload[protocol.Welcome](codec, expect(t, fc, codec, protocol.MsgWelcome))
	if err != nil || welcome.ID != id {
		t.Fatalf("welcome = %+v (%v), want id %s", welcome, err, id)
	}
	deliver(t, r, id, codec, protocol.MsgJoin, protocol.Join{Name: name, Position: origin})
	expect(t, fc, codec, protocol.MsgCurrentPlayers)
	return fc, id
}

func TestRoomJoinSendsStateAndAnnounces(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	expect(t, fa, protocol.JSON, protocol.MsgCurrentTerritories)

	fb := newFakeConn()
	b, err := r.Connect(fb, protocol.JSON)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	deliver(t, r, b, protocol.JSON, protocol.MsgJoin, protocol.Join{Name: "bob", Position: origin})

	players, err := protocol.DecodePayload[[]protocol.Participant](protocol.JSON, expect(t, fb, protocol.JSON, protocol.MsgCurrentPlayers))
	if err != nil {
		t.Fatalf("decode players: %v", err)
	}
	if len(players) != 2 || players[0].ID != a || players[1].ID != b {
		t.Fatalf("currentPlayers = %+v, want [%s %s]", players, a, b)
	}
	terrs, err := protocol.DecodePayload[[]protocol.Territory](protocol.JSON, expect(t, fb, protocol.JSON, protocol.MsgCurrentTerritories))
	if err != nil || len(terrs) != 3 {
		t.Fatalf("currentTerritories = %+v (%v)", terrs, err)
	}

	joined, err := protocol.DecodePayload[protocol.Participant](protocol.JSON, expect(t, fa, protocol.JSON, protocol.MsgPlayerJoined))
	if err != nil || joined.ID != b || joined.Name != "bob" || joined.Health != 100 {
		t.Fatalf("playerJoined = %+v (%v)", joined, err)
	}

	settle(t, r)
	for _, typ := range drainTypes(t, fb, protocol.JSON) {
		if typ == protocol.MsgPlayerJoined {
			t.Fatalf("joiner received its own playerJoined")
		}
	}
}

func TestRoomMoveRelaysToOthersOnly(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	fb, _ := joinRoom(t, r, "bob", protocol.JSON)
	settle(t, r)
	drainTypes(t, fa, protocol.JSON)

	to := geo.Offset(origin, 3, 4)
	deliver(t, r, a, protocol.JSON, protocol.MsgMove, to)

	moved, err := protocol.DecodePayload[protocol.PlayerMoved](protocol.JSON, expect(t, fb, protocol.JSON, protocol.MsgPlayerMoved))
	if err != nil || moved.ID != a || moved.Position != to {
		t.Fatalf("playerMoved = %+v (%v)", moved, err)
	}
	settle(t, r)
	for _, typ := range drainTypes(t, fa, protocol.JSON) {
		if typ == protocol.MsgPlayerMoved {
			t.Fatalf("mover received its own playerMoved")
		}
	}
}

func TestRoomHitBroadcastsBothScores(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	_, b := joinRoom(t, r, "bob", protocol.JSON)

	deliver(t, r, a, protocol.JSON, protocol.MsgPlayerHit, protocol.HitRequest{TargetID: b, ProjectileID: "p1"})

	first, err := protocol.DecodePayload[protocol.HitUpdate](protocol.JSON, expect(t, fa, protocol.JSON, protocol.MsgPlayerHit))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := protocol.DecodePayload[protocol.HitUpdate](protocol.JSON, expect(t, fa, protocol.JSON, protocol.MsgPlayerHit))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.ID != a || first.Score != 10 || first.Health != nil {
		t.Fatalf("attacker update = %+v", first)
	}
	if second.ID != b || second.Score != 0 || second.Health == nil || *second.Health != 75 {
		t.Fatalf("target update = %+v", second)
	}
}

func TestRoomCaptureTransferPenalizesPreviousOwner(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	_, b := joinRoom(t, r, "bob", protocol.JSON)

	deliver(t, r, a, protocol.JSON, protocol.MsgTerritoryCaptured, protocol.CaptureRequest{TerritoryID: "territory_1", OwnerID: a})
	expect(t, fa, protocol.JSON, protocol.MsgTerritoryCaptured)

	// ownerId 为空时记给发送者
	deliver(t, r, b, protocol.JSON, protocol.MsgTerritoryCaptured, protocol.CaptureRequest{TerritoryID: "territory_1"})

	pen, err := protocol.DecodePayload[protocol.HitUpdate](protocol.JSON, expect(t, fa, protocol.JSON, protocol.MsgPlayerHit))
	if err != nil || pen.ID != a || pen.Score != 30 {
		t.Fatalf("penalty = %+v (%v), want %s at 30", pen, err, a)
	}
	capd, err := protocol.DecodePayload[protocol.CaptureUpdate](protocol.JSON, expect(t, fa, protocol.JSON, protocol.MsgTerritoryCaptured))
	if err != nil || capd.OwnerID != b || capd.Score != 50 || capd.TerritoryID != "territory_1" {
		t.Fatalf("capture = %+v (%v)", capd, err)
	}
}

func TestRoomRepeatCaptureIsSilent(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	req := protocol.CaptureRequest{TerritoryID: "territory_2", OwnerID: a}
	deliver(t, r, a, protocol.JSON, protocol.MsgTerritoryCaptured, req)
	expect(t, fa, protocol.JSON, protocol.MsgTerritoryCaptured)

	deliver(t, r, a, protocol.JSON, protocol.MsgTerritoryCaptured, req)
	st := settle(t, r)
	if got := drainTypes(t, fa, protocol.JSON); len(got) != 0 {
		t.Fatalf("repeat capture produced %v", got)
	}
	if st.Metrics["captures"].(int64) != 1 {
		t.Fatalf("captures = %v, want 1", st.Metrics["captures"])
	}
}

func TestRoomDropsMalformedAndUnknown(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	settle(t, r)
	drainTypes(t, fa, protocol.JSON)

	r.Deliver(a, []byte("not json"))
	r.Deliver(a, []byte(`{"t":"playerHit","p":"oops"}`))
	deliver(t, r, a, protocol.JSON, "teleport", map[string]int{"x": 1})
	deliver(t, r, a, protocol.JSON, protocol.MsgPlayerHit, protocol.HitRequest{TargetID: "ghost"})
	deliver(t, r, a, protocol.JSON, protocol.MsgTerritoryCaptured, protocol.CaptureRequest{TerritoryID: "nowhere", OwnerID: a})
	r.Deliver("stranger", []byte(`{"t":"join","p":{}}`))

	st := settle(t, r)
	if got := st.Metrics["dropped"].(int64); got != 6 {
		t.Fatalf("dropped = %d, want 6", got)
	}
	if got := drainTypes(t, fa, protocol.JSON); len(got) != 0 {
		t.Fatalf("dropped events produced %v", got)
	}
	if st.Participants != 1 {
		t.Fatalf("participants = %d, want 1", st.Participants)
	}
}

func TestRoomDisconnectAnnouncesLeave(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	fb, _ := joinRoom(t, r, "bob", protocol.JSON)
	deliver(t, r, a, protocol.JSON, protocol.MsgTerritoryCaptured, protocol.CaptureRequest{TerritoryID: "territory_1", OwnerID: a})

	r.RequestLeave(a)
	left, err := protocol.DecodePayload[string](protocol.JSON, expect(t, fb, protocol.JSON, protocol.MsgPlayerLeft))
	if err != nil || left != a {
		t.Fatalf("playerLeft = %q (%v), want %s", left, err, a)
	}
	st := settle(t, r)
	if st.Participants != 1 || st.Connections != 1 {
		t.Fatalf("stats after leave = %+v", st)
	}
	if !fa.isClosed() {
		t.Fatalf("leaving connection not closed")
	}
}

func TestRoomMixedCodecs(t *testing.T) {
	r := newTestRoom(t, 0)
	fm, m := joinRoom(t, r, "packed", protocol.Msgpack)
	_, j := joinRoom(t, r, "plain", protocol.JSON)

	joined, err := protocol.DecodePayload[protocol.Participant](protocol.Msgpack, expect(t, fm, protocol.Msgpack, protocol.MsgPlayerJoined))
	if err != nil || joined.ID != j || joined.Name != "plain" {
		t.Fatalf("playerJoined over msgpack = %+v (%v)", joined, err)
	}

	deliver(t, r, j, protocol.JSON, protocol.MsgPlayerHit, protocol.HitRequest{TargetID: m})
	expect(t, fm, protocol.Msgpack, protocol.MsgPlayerHit)
	hit, err := protocol.DecodePayload[protocol.HitUpdate](protocol.Msgpack, expect(t, fm, protocol.Msgpack, protocol.MsgPlayerHit))
	if err != nil || hit.ID != m || hit.Health == nil || *hit.Health != 75 {
		t.Fatalf("target update over msgpack = %+v (%v)", hit, err)
	}
}

func TestRoomRespawnAfterDeath(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	fb, b := joinRoom(t, r, "bob", protocol.JSON)

	// 存活时复活请求被忽略
	deliver(t, r, b, protocol.JSON, protocol.MsgRespawn, origin)
	for i := 0; i < 4; i++ {
		deliver(t, r, a, protocol.JSON, protocol.MsgPlayerHit, protocol.HitRequest{TargetID: b})
	}
	st := settle(t, r)
	if st.Metrics["respawns"].(int64) != 0 {
		t.Fatalf("respawn accepted while alive")
	}
	drainTypes(t, fa, protocol.JSON)

	at := geo.Offset(origin, 40, -20)
	deliver(t, r, b, protocol.JSON, protocol.MsgRespawn, at)
	resp, err := protocol.DecodePayload[protocol.Respawned](protocol.JSON, expect(t, fa, protocol.JSON, protocol.MsgPlayerRespawned))
	if err != nil || resp.ID != b || resp.Health != 100 || resp.Position != at {
		t.Fatalf("playerRespawned = %+v (%v)", resp, err)
	}
	expect(t, fb, protocol.JSON, protocol.MsgPlayerRespawned)
}

func TestRoomRulesUpdate(t *testing.T) {
	r := newTestRoom(t, 0)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)
	_, b := joinRoom(t, r, "bob", protocol.JSON)

	bonus := 7
	rules, err := r.UpdateRules(RulesPatch{HitBonus: &bonus})
	if err != nil {
		t.Fatalf("update rules: %v", err)
	}
	if rules.HitBonus != 7 || rules.HitPenalty != 5 {
		t.Fatalf("rules = %+v", rules)
	}

	deliver(t, r, a, protocol.JSON, protocol.MsgPlayerHit, protocol.HitRequest{TargetID: b})
	up, err := protocol.DecodePayload[protocol.HitUpdate](protocol.JSON, expect(t, fa, protocol.JSON, protocol.MsgPlayerHit))
	if err != nil || up.Score != 7 {
		t.Fatalf("attacker update = %+v (%v), want score 7", up, err)
	}
}

func TestRoomPeriodicSnapshot(t *testing.T) {
	r := newTestRoom(t, 20*time.Millisecond)
	fa, a := joinRoom(t, r, "alice", protocol.JSON)

	snap, err := protocol.DecodePayload[protocol.Snapshot](protocol.JSON, expect(t, fa, protocol.JSON, protocol.MsgSnapshot))
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Players) != 1 || snap.Players[0].ID != a || len(snap.Territories) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestRoomStopClosesConnections(t *testing.T) {
	r := NewRoom("stop", config.DefaultRules(), DefaultLayout(origin), 0)
	r.Start()
	fa, _ := joinRoom(t, r, "alice", protocol.JSON)

	r.Stop()
	deadline := time.Now().Add(500 * time.Millisecond)
	for !fa.isClosed() {
		if time.Now().After(deadline) {
			t.Fatalf("connection not closed on stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := r.Stats(); !errors.Is(err, ErrRoomStopped) {
		t.Fatalf("stats after stop err = %v, want ErrRoomStopped", err)
	}
	if _, err := r.Connect(newFakeConn(), protocol.JSON); !errors.Is(err, ErrRoomStopped) {
		t.Fatalf("connect after stop err = %v, want ErrRoomStopped", err)
	}
}
