package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/GrainArc/SurveyTIN/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MeshSession 一次交互式网格编辑会话
// 网格常驻内存，编辑操作串行执行，撤销栈由网格自身维护
type MeshSession struct {
	ID         string
	TinBSM     string
	Mesh       *Tin.TinMesh
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.Mutex
}

// WithMesh 在会话锁内执行网格操作
func (s *MeshSession) WithMesh(fn func(m *Tin.TinMesh)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastActive = time.Now()
	fn(s.Mesh)
}

// 全局会话管理器
type SessionManager struct {
	sessions map[string]*MeshSession
	mutex    sync.RWMutex
}

var Sessions = &SessionManager{
	sessions: make(map[string]*MeshSession),
}

// 会话空闲超时时长
const sessionTTL = 2 * time.Hour

// OpenSession 从成果表载入网格并开启编辑会话
func (sm *SessionManager) OpenSession(db *gorm.DB, tinBSM string) (*MeshSession, error) {
	mesh, _, err := LoadMesh(db, tinBSM)
	if err != nil {
		return nil, err
	}

	session := &MeshSession{
		ID:         uuid.New().String(),
		TinBSM:     tinBSM,
		Mesh:       mesh,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.sessions[session.ID] = session
	return session, nil
}

// GetSession 按会话ID取会话
func (sm *SessionManager) GetSession(sessionID string) (*MeshSession, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	session, exists := sm.sessions[sessionID]
	return session, exists
}

// CloseSession 关闭并丢弃会话，未保存的编辑随之丢失
func (sm *SessionManager) CloseSession(sessionID string) bool {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	if _, exists := sm.sessions[sessionID]; !exists {
		return false
	}
	delete(sm.sessions, sessionID)
	return true
}

// SaveSession 将会话中的网格写回成果表
func (sm *SessionManager) SaveSession(db *gorm.DB, sessionID string) error {
	session, exists := sm.GetSession(sessionID)
	if !exists {
		return fmt.Errorf("编辑会话不存在: %s", sessionID)
	}

	var record models.TinRecord
	if err := db.Where("bsm = ?", session.TinBSM).First(&record).Error; err != nil {
		return fmt.Errorf("TIN成果不存在: %s", session.TinBSM)
	}

	var saveErr error
	session.WithMesh(func(m *Tin.TinMesh) {
		_, saveErr = SaveTinRecord(db, record.BSM, record.Name, record.EN, record.SourceBSM, m)
	})
	return saveErr
}

// SweepIdleSessions 清理空闲超时的会话，由定时任务调用
func (sm *SessionManager) SweepIdleSessions() int {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	removed := 0
	now := time.Now()
	for id, session := range sm.sessions {
		if now.Sub(session.LastActive) > sessionTTL {
			delete(sm.sessions, id)
			removed++
		}
	}
	return removed
}
