package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateSessionReturnsUniqueIDs(t *testing.T) {
	m := NewManager(2)

	first := m.CreateSession()
	second := m.CreateSession()

	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	require.NotEqual(t, first, second)
}

func TestGetHistoryEmptyForNewSession(t *testing.T) {
	m := NewManager(2)

	id := m.CreateSession()
	require.Equal(t, "", m.GetHistory(id))
	require.Equal(t, "", m.GetHistory("never-seen"))
}

func TestGetHistoryFormatsExchanges(t *testing.T) {
	m := NewManager(2)
	id := m.CreateSession()

	m.AddExchange(id, "What is RAG?", "Retrieval-augmented generation.")
	m.AddExchange(id, "Who teaches it?", "Colt Steele.")

	want := "User: What is RAG?\nAssistant: Retrieval-augmented generation.\n" +
		"User: Who teaches it?\nAssistant: Colt Steele."
	require.Equal(t, want, m.GetHistory(id))
}

func TestHistoryKeepsOnlyMostRecentExchanges(t *testing.T) {
	m := NewManager(2)
	id := m.CreateSession()

	m.AddExchange(id, "q1", "a1")
	m.AddExchange(id, "q2", "a2")
	m.AddExchange(id, "q3", "a3")

	history := m.GetHistory(id)
	require.NotContains(t, history, "q1")
	require.Contains(t, history, "q2")
	require.Contains(t, history, "q3")
}

func TestAddExchangeCreatesUnknownSession(t *testing.T) {
	m := NewManager(2)

	m.AddExchange("adhoc", "q", "a")
	require.Equal(t, "User: q\nAssistant: a", m.GetHistory("adhoc"))
}

func TestDeleteIsIdempotent(t *testing.T) {
	m := NewManager(2)
	id := m.CreateSession()
	m.AddExchange(id, "q", "a")

	m.Delete(id)
	require.Equal(t, "", m.GetHistory(id))

	// Deleting again must not panic or error
	m.Delete(id)
	m.Delete("never-seen")
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(2)
	a := m.CreateSession()
	b := m.CreateSession()

	m.AddExchange(a, "question a", "answer a")
	m.AddExchange(b, "question b", "answer b")

	require.NotContains(t, m.GetHistory(a), "question b")
	require.NotContains(t, m.GetHistory(b), "question a")
}
