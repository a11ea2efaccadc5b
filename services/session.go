package services

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/queryquack/queryquack/models"
)

// Session owns all mutable per-user state: chat history, the list of
// processed files, accumulated source references and the vector-store
// namespace. Everything a pipeline call touches is passed this object
// explicitly; there is no ambient global state.
type Session struct {
	ID        string
	Namespace string

	mu        sync.Mutex
	history   []models.ChatTurn
	processed []string
	records   map[string][]string // filename -> stored record IDs
	sources   []models.SourceRef
	seen      map[models.SourceRef]struct{}
}

func newSession() *Session {
	id := uuid.New()
	return &Session{
		ID:        id.String(),
		Namespace: "session_" + strings.ReplaceAll(id.String(), "-", "")[:8],
		records:   make(map[string][]string),
		seen:      make(map[models.SourceRef]struct{}),
	}
}

// AppendTurn adds one turn to the conversation history.
func (s *Session) AppendTurn(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, models.ChatTurn{Role: role, Content: content})
}

// History returns a copy of the conversation so far.
func (s *Session) History() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}

// MarkProcessed records a filename, reporting false if the session has
// already ingested it.
func (s *Session) MarkProcessed(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.processed {
		if f == filename {
			return false
		}
	}
	s.processed = append(s.processed, filename)
	return true
}

// forgetProcessed releases a filename reserved by MarkProcessed, either
// after a failed ingestion or ahead of a replacement, so the name can be
// ingested again.
func (s *Session) forgetProcessed(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, filename)
	for i, f := range s.processed {
		if f == filename {
			s.processed = append(s.processed[:i], s.processed[i+1:]...)
			return
		}
	}
}

// setRecordIDs remembers which store records a file produced, so a later
// version of the file can replace them.
func (s *Session) setRecordIDs(filename string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[filename] = ids
}

// recordIDsFor returns the stored record IDs of a previously ingested
// file, or nil.
func (s *Session) recordIDsFor(filename string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records[filename]))
	copy(out, s.records[filename])
	return out
}

// ProcessedFiles returns the filenames ingested so far, in order.
func (s *Session) ProcessedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.processed))
	copy(out, s.processed)
	return out
}

// AddSources accumulates citation references, preserving insertion
// order and dropping duplicates.
func (s *Session) AddSources(refs []models.SourceRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		if _, ok := s.seen[ref]; ok {
			continue
		}
		s.seen[ref] = struct{}{}
		s.sources = append(s.sources, ref)
	}
}

// Sources returns the deduplicated references in insertion order.
func (s *Session) Sources() []models.SourceRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SourceRef, len(s.sources))
	copy(out, s.sources)
	return out
}

// clear drops all per-session state at teardown.
func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.processed = nil
	s.records = make(map[string][]string)
	s.sources = nil
	s.seen = make(map[models.SourceRef]struct{})
}

// SessionManager tracks live sessions by ID.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

func (m *SessionManager) Create() *Session {
	s := newSession()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove detaches a session from the manager and clears it. The caller
// is responsible for deleting its namespace from the vector store.
func (m *SessionManager) Remove(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.clear()
	}
	return s, ok
}
