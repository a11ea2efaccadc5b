package services

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryquack/queryquack/models"
)

func TestNewSessionNamespaceFormat(t *testing.T) {
	s := newSession()

	assert.NotEmpty(t, s.ID)
	require.True(t, strings.HasPrefix(s.Namespace, "session_"))
	suffix := strings.TrimPrefix(s.Namespace, "session_")
	assert.Len(t, suffix, 8)
	assert.NotContains(t, suffix, "-")
}

func TestSessionNamespacesAreUnique(t *testing.T) {
	a, b := newSession(), newSession()
	assert.NotEqual(t, a.Namespace, b.Namespace)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSessionHistoryOrder(t *testing.T) {
	s := newSession()
	s.AppendTurn(models.RoleUser, "where do ducks sleep")
	s.AppendTurn(models.RoleAssistant, "in nests near water")
	s.AppendTurn(models.RoleUser, "and in winter?")

	history := s.History()
	require.Len(t, history, 3)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, "and in winter?", history[2].Content)

	// Returned slice is a copy; mutating it must not touch the session.
	history[0].Content = "tampered"
	assert.Equal(t, "where do ducks sleep", s.History()[0].Content)
}

func TestMarkProcessedRejectsDuplicates(t *testing.T) {
	s := newSession()

	assert.True(t, s.MarkProcessed("ducks.txt"))
	assert.False(t, s.MarkProcessed("ducks.txt"))
	assert.True(t, s.MarkProcessed("geese.txt"))
	assert.Equal(t, []string{"ducks.txt", "geese.txt"}, s.ProcessedFiles())
}

func TestForgetProcessedAllowsRetry(t *testing.T) {
	s := newSession()

	require.True(t, s.MarkProcessed("ducks.txt"))
	s.forgetProcessed("ducks.txt")
	assert.True(t, s.MarkProcessed("ducks.txt"), "a released filename can be ingested again")

	// Forgetting an unknown filename is a no-op.
	s.forgetProcessed("never-seen.txt")
	assert.Equal(t, []string{"ducks.txt"}, s.ProcessedFiles())
}

func TestRecordIDTracking(t *testing.T) {
	s := newSession()

	s.setRecordIDs("ducks.txt", []string{"id1", "id2"})
	assert.Equal(t, []string{"id1", "id2"}, s.recordIDsFor("ducks.txt"))
	assert.Empty(t, s.recordIDsFor("unknown.txt"))

	// Releasing the filename drops its record bookkeeping too.
	s.MarkProcessed("ducks.txt")
	s.forgetProcessed("ducks.txt")
	assert.Empty(t, s.recordIDsFor("ducks.txt"))
}

func TestAddSourcesDedupPreservesOrder(t *testing.T) {
	s := newSession()

	s.AddSources([]models.SourceRef{
		{Filename: "a.txt", ChunkIndex: 0},
		{Filename: "b.txt", ChunkIndex: 2},
	})
	s.AddSources([]models.SourceRef{
		{Filename: "a.txt", ChunkIndex: 0}, // duplicate
		{Filename: "a.txt", ChunkIndex: 1},
	})

	assert.Equal(t, []models.SourceRef{
		{Filename: "a.txt", ChunkIndex: 0},
		{Filename: "b.txt", ChunkIndex: 2},
		{Filename: "a.txt", ChunkIndex: 1},
	}, s.Sources())
}

func TestSessionManagerLifecycle(t *testing.T) {
	m := NewSessionManager()

	s := m.Create()
	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	removed, ok := m.Remove(s.ID)
	require.True(t, ok)
	assert.Same(t, s, removed)

	_, ok = m.Get(s.ID)
	assert.False(t, ok)

	_, ok = m.Remove(s.ID)
	assert.False(t, ok, "removing twice reports the session as gone")
}

func TestRemoveClearsSessionState(t *testing.T) {
	m := NewSessionManager()
	s := m.Create()
	s.AppendTurn(models.RoleUser, "hello")
	s.MarkProcessed("ducks.txt")
	s.AddSources([]models.SourceRef{{Filename: "ducks.txt", ChunkIndex: 0}})

	m.Remove(s.ID)

	assert.Empty(t, s.History())
	assert.Empty(t, s.ProcessedFiles())
	assert.Empty(t, s.Sources())
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := newSession()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendTurn(models.RoleUser, "turn")
			s.MarkProcessed("file.txt")
			s.AddSources([]models.SourceRef{{Filename: "file.txt", ChunkIndex: 0}})
			_ = s.History()
			_ = s.Sources()
		}()
	}
	wg.Wait()

	assert.Len(t, s.History(), 8)
	assert.Len(t, s.ProcessedFiles(), 1)
	assert.Len(t, s.Sources(), 1)
}
