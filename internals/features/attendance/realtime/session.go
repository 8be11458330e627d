package realtime

import (
	"sync"

	"github.com/google/uuid"

	"presensiku_backend/internals/features/attendance/geofence"
)

// Status scan di buffer sesi live.
const (
	ScanStatusPresent   = "Present"
	ScanStatusProxy     = "Proxy"
	ScanStatusDuplicate = "Duplicate"
)

// Scan adalah satu event scan student di sebuah sesi.
type Scan struct {
	StudentID uuid.UUID `json:"student_id"`
	Timestamp string    `json:"timestamp"` // client timestamp, audit only
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Status    string    `json:"status"`
	DistanceM float64   `json:"distance"`
	IsProxy   bool      `json:"is_proxy"`
}

// Session adalah buffer write-behind satu room live: BUKAN authoritative,
// tugasnya cuma menekan write amplification saat burst scan.
// First scan per student menang; scan berikutnya ditandai Duplicate dan
// tidak menimpa entry tersimpan.
type Session struct {
	ID        string
	SubjectID uuid.UUID
	Ref       *geofence.Reference // nil = geofence tidak dikonfigurasi

	mu    sync.Mutex
	scans map[string]*Scan // student id -> scan pertama
	order []string         // urutan kedatangan, untuk flush deterministik
}

func NewSession(id string, subjectID uuid.UUID, ref *geofence.Reference) *Session {
	return &Session{
		ID:        id,
		SubjectID: subjectID,
		Ref:       ref,
		scans:     make(map[string]*Scan),
	}
}

// Add menyimpan scan bila student belum ada di buffer.
// Return false = duplicate (tidak disimpan).
func (s *Session) Add(scan *Scan) bool {
	key := scan.StudentID.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[key]; ok {
		return false
	}
	s.scans[key] = scan
	s.order = append(s.order, key)
	return true
}

// Snapshot mengembalikan salinan isi buffer dalam urutan kedatangan.
func (s *Session) Snapshot() []*Scan {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Scan, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.scans[key])
	}
	return out
}

// Remove menghapus HANYA student yang sudah berhasil di-flush.
// Scan yang masuk selama flush berjalan tetap utuh untuk cycle berikut.
func (s *Session) Remove(studentIDs []string) {
	drop := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, key := range s.order {
		if _, ok := drop[key]; ok {
			delete(s.scans, key)
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scans)
}

// SessionStore: registry sesi yang DI-INJECT, bukan variabel global.
// Implementasi default in-memory - state per-process: tidak survive
// restart dan tidak tersinkron antar instance. Deployment multi-instance
// butuh sticky routing per sesi atau store eksternal.
type SessionStore interface {
	Get(id string) (*Session, bool)
	Put(sess *Session)
	Delete(id string)
	Range(fn func(sess *Session) bool)
}

type memorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{sessions: make(map[string]*Session)}
}

func (m *memorySessionStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *memorySessionStore) Put(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
}

func (m *memorySessionStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *memorySessionStore) Range(fn func(sess *Session) bool) {
	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mu.RUnlock()

	for _, s := range snapshot {
		if !fn(s) {
			return
		}
	}
}
