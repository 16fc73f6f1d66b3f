package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inspection-map/internal/mapsvc/annotate"
	"inspection-map/internal/mapsvc/geoindex"
	"inspection-map/internal/mapsvc/selection"
	"inspection-map/internal/upstream"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Session Manager
// ============================================================

// DraftStore — локальное хранилище черновиков осмотра. Черновики
// привязаны к этажу, а не к сессии: простаивающую сессию выгоняет
// sweep, черновик доживает до TTL.
type DraftStore interface {
	PutDraft(ctx context.Context, key string, payload []byte) error
	GetDraft(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
}

// Deps — общие зависимости всех сессий. Индекс геометрии и кеш
// зданий разделяются, контроллер и редакторы у каждой сессии свои.
type Deps struct {
	Index     *geoindex.Index
	Resolver  selection.Resolver
	Cache     *selection.BuildingCache
	Buildings upstream.BuildingAPI
	Layers    upstream.LayerAPI
	Uploads   upstream.UploadAPI
	Snapshots selection.SnapshotStore
	Drafts    DraftStore
	DraftTTL  time.Duration
}

// Session — одно устройство инспектора: контроллер выбора плюс
// ленивые редакторы и мастера по этажам.
type Session struct {
	ID         string
	Controller *selection.Controller
	Recorder   *selection.CommandRecorder

	mu       sync.Mutex
	deps     Deps
	editors  map[int64]*annotate.Editor
	machines map[int64]*annotate.Machine
	lastSeen time.Time
	log      *logrus.Entry
}

type Manager struct {
	mu       sync.Mutex
	deps     Deps
	sessions map[string]*Session
	log      *logrus.Entry
}

func NewManager(deps Deps, log *logrus.Entry) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Open создает сессию с собственным контроллером выбора
func (m *Manager) Open() *Session {
	recorder := selection.NewCommandRecorder()
	s := &Session{
		ID:       uuid.NewString(),
		Recorder: recorder,
		deps:     m.deps,
		editors:  make(map[int64]*annotate.Editor),
		machines: make(map[int64]*annotate.Machine),
		lastSeen: time.Now(),
		log:      m.log,
	}
	s.Controller = selection.NewController(
		m.deps.Index, m.deps.Resolver, m.deps.Cache,
		m.deps.Buildings, recorder, m.deps.Snapshots, m.log,
	)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Infof("session opened: %s", s.ID)
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.touch()
	}
	return s, ok
}

func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.log.Infof("session closed: %s", id)
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep выгоняет простаивающие сессии
func (m *Manager) Sweep(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	evicted := 0
	for id, s := range m.sessions {
		if s.seen().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.log.Infof("swept %d idle session(s)", evicted)
	}
	return evicted
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) seen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// ------------------------------------------------------------
// Редакторы и мастера по этажам
// ------------------------------------------------------------

// Editor возвращает инлайн-редактор меток этажа, создавая его из
// текущего серверного списка слоев при первом обращении.
func (s *Session) Editor(floorID int64) (*annotate.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ed, ok := s.editors[floorID]; ok {
		return ed, nil
	}

	snap := s.Controller.Snapshot()
	if snap.Building == nil {
		return nil, fmt.Errorf("no building selected")
	}
	floor := snap.Building.FloorByID(floorID)
	if floor == nil {
		return nil, fmt.Errorf("floor %d not in selected building", floorID)
	}

	ed := annotate.NewEditor(floorID, floor.Layers, s.deps.Layers, s.log)
	s.editors[floorID] = ed
	return ed, nil
}

// Machine возвращает мастер добавления метки для этажа
func (s *Session) Machine(floorID int64) *annotate.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.machines[floorID]; ok {
		return m
	}
	m := annotate.NewMachine(floorID, s.deps.Layers, s.deps.Uploads, s.refreshFloor(floorID), s.log)
	s.machines[floorID] = m
	return m
}

// ------------------------------------------------------------
// Черновики осмотра
// ------------------------------------------------------------

// SaveFloorDraft пишет черновик осмотра этажа в локальное хранилище
func (s *Session) SaveFloorDraft(ctx context.Context, floorID int64, payload []byte) error {
	if s.deps.Drafts == nil {
		return fmt.Errorf("draft store is not configured")
	}
	return s.deps.Drafts.PutDraft(ctx, draftKey(floorID), payload)
}

// LoadFloorDraft возвращает черновик этажа не старше TTL
func (s *Session) LoadFloorDraft(ctx context.Context, floorID int64) ([]byte, error) {
	if s.deps.Drafts == nil {
		return nil, fmt.Errorf("draft store is not configured")
	}
	return s.deps.Drafts.GetDraft(ctx, draftKey(floorID), s.deps.DraftTTL)
}

func draftKey(floorID int64) string {
	return fmt.Sprintf("floor-%d", floorID)
}

// refreshFloor — полный рефреш здания после успешного сабмита,
// с пересевом локального редактора этажа из серверного списка.
func (s *Session) refreshFloor(floorID int64) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := s.Controller.RefreshBuilding(ctx); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		ed, ok := s.editors[floorID]
		if !ok {
			return nil
		}
		snap := s.Controller.Snapshot()
		if snap.Building == nil {
			return nil
		}
		if floor := snap.Building.FloorByID(floorID); floor != nil {
			ed.Reseed(floor.Layers)
		}
		return nil
	}
}
