package server

import (
	"sort"
	"sync"

	"geoarena/config"
)

// RoomManager 管理多个房间的生命周期：首次使用时创建，Close 时统一停止
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	cfg   config.Config
}

func NewRoomManager(cfg config.Config) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
		cfg:   cfg,
	}
}

// GetOrCreateRoom 获取或创建房间（id 为空时取默认房间），并确保开始运行
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	if id == "" {
		id = m.cfg.DefaultRoom
	}
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok = m.rooms[id]; !ok {
		r = NewRoom(id, m.cfg.Rules, DefaultLayout(m.cfg.ArenaCenter), m.cfg.SnapshotInterval)
		m.rooms[id] = r
		r.Start()
	}
	return r
}

// Room 只查找已存在的房间，不创建
func (m *RoomManager) Room(id string) (*Room, bool) {
	if id == "" {
		id = m.cfg.DefaultRoom
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomIDs 按字典序列出房间 id
func (m *RoomManager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close 停止所有房间
func (m *RoomManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		r.Stop()
		delete(m.rooms, id)
	}
}
