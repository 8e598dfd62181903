package session

import (
	"errors"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/iconicplus/shell/internal/shared/types"
)

// fakeKV is an in-memory KV with optional failure injection.
type fakeKV struct {
	data     map[string][]byte
	writes   int
	failNext bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Read(key string) ([]byte, bool, error) {
	d, ok := f.data[key]
	return d, ok, nil
}

func (f *fakeKV) Write(key string, data []byte) error {
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	f.writes++
	f.data[key] = append([]byte(nil), data...)
	return nil
}

// fakeNav records mode switches.
type fakeNav struct {
	switches []types.Mode
}

func (f *fakeNav) SwitchTo(mode types.Mode) {
	f.switches = append(f.switches, mode)
}

func TestCreatePrependsAndActivates(t *testing.T) {
	nav := &fakeNav{}
	s := NewStore(newFakeKV(), nav, nil)

	first := s.Create()
	second := s.Create()

	sessions := s.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != second.ID {
		t.Error("Newest session should be first")
	}
	if s.ActiveID() != second.ID {
		t.Errorf("Expected active %s, got %s", second.ID, s.ActiveID())
	}
	if first.Title != types.DefaultSessionTitle {
		t.Errorf("Expected default title, got %q", first.Title)
	}
	if len(nav.switches) != 2 || nav.switches[1] != types.ModeChat {
		t.Errorf("Create should switch to chat mode, got %v", nav.switches)
	}
}

func TestCreateIDsUniqueAndOrdered(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)

	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 200; i++ {
		sess := s.Create()
		if seen[sess.ID] {
			t.Fatalf("Duplicate session id %s", sess.ID)
		}
		seen[sess.ID] = true
		if prev != "" && sess.ID <= prev {
			t.Fatalf("IDs should sort by creation: %s after %s", sess.ID, prev)
		}
		prev = sess.ID
	}
}

func TestDeleteActiveReassignsToFirst(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)

	c := s.Create() // position 2 after later creates
	b := s.Create()
	a := s.Create() // newest, first in the collection

	if !s.Select(b.ID) {
		t.Fatal("Select of known id should succeed")
	}
	if !s.Delete(b.ID) {
		t.Fatal("Delete of known id should succeed")
	}

	if s.ActiveID() != a.ID {
		t.Errorf("Active should move to first element %s, got %s", a.ID, s.ActiveID())
	}
	sessions := s.Sessions()
	if len(sessions) != 2 || sessions[0].ID != a.ID || sessions[1].ID != c.ID {
		t.Errorf("Collection order wrong after delete: %v", sessions)
	}
}

func TestDeleteInactiveKeepsActive(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)

	old := s.Create()
	newest := s.Create()

	s.Delete(old.ID)
	if s.ActiveID() != newest.ID {
		t.Error("Deleting an inactive session should not change the active id")
	}
}

func TestDeleteLastClearsActive(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)

	only := s.Create()
	s.Delete(only.ID)

	if s.Len() != 0 {
		t.Errorf("Expected empty collection, got %d", s.Len())
	}
	if s.ActiveID() != "" {
		t.Errorf("Active id should clear, got %s", s.ActiveID())
	}
}

func TestUnknownIDNoOps(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)
	sess := s.Create()

	if s.Delete("nope") {
		t.Error("Delete of unknown id should report false")
	}
	if s.Select("nope") {
		t.Error("Select of unknown id should report false")
	}
	if s.Rename("nope", "x") {
		t.Error("Rename of unknown id should report false")
	}
	if s.AppendMessage("nope", types.ChatMessage{Role: types.RoleUser, Text: "hi"}) {
		t.Error("AppendMessage to unknown id should report false")
	}
	if s.Len() != 1 || s.ActiveID() != sess.ID {
		t.Error("No-op operations should leave state untouched")
	}
}

func TestSelectSwitchesToChat(t *testing.T) {
	nav := &fakeNav{}
	s := NewStore(newFakeKV(), nav, nil)

	sess := s.Create()
	nav.switches = nil

	s.Select(sess.ID)
	if len(nav.switches) != 1 || nav.switches[0] != types.ModeChat {
		t.Errorf("Select should switch to chat, got %v", nav.switches)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	kv := newFakeKV()

	s := NewStore(kv, nil, nil)
	a := s.Create()
	b := s.Create()
	s.Rename(a.ID, "Travel plans")
	s.AppendMessage(b.ID, types.ChatMessage{Role: types.RoleUser, Text: "hello"})

	restored := NewStore(kv, nil, nil)
	restored.Restore()

	if restored.Len() != 2 {
		t.Fatalf("Expected 2 restored sessions, got %d", restored.Len())
	}
	if restored.ActiveID() != b.ID {
		t.Errorf("Restore should activate the first element %s, got %s", b.ID, restored.ActiveID())
	}
	got, ok := restored.Get(a.ID)
	if !ok || got.Title != "Travel plans" {
		t.Errorf("Rename should survive the round trip, got %+v", got)
	}
	got, ok = restored.Get(b.ID)
	if !ok || len(got.Messages) != 1 || got.Messages[0].Text != "hello" {
		t.Errorf("Messages should survive the round trip, got %+v", got)
	}
}

func TestPersistedLayoutIsBareArray(t *testing.T) {
	kv := newFakeKV()
	s := NewStore(kv, nil, nil)
	s.Create()

	blob, ok := kv.data[StorageKey]
	if !ok {
		t.Fatalf("Expected a write under %q", StorageKey)
	}

	var arr []map[string]any
	if err := sonic.Unmarshal(blob, &arr); err != nil {
		t.Fatalf("Persisted blob should be a JSON array: %v", err)
	}
	if len(arr) != 1 {
		t.Fatalf("Expected 1 element, got %d", len(arr))
	}
	for _, field := range []string{"id", "title", "messages", "lastModified"} {
		if _, ok := arr[0][field]; !ok {
			t.Errorf("Persisted session missing field %q", field)
		}
	}
}

func TestRestoreMissingKey(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)
	s.Restore()

	if s.Len() != 0 || s.ActiveID() != "" {
		t.Error("Restore with nothing persisted should leave the store empty")
	}
}

func TestRestoreCorruptBlob(t *testing.T) {
	kv := newFakeKV()
	kv.data[StorageKey] = []byte("not json at all")

	s := NewStore(kv, nil, nil)
	s.Restore()

	if s.Len() != 0 {
		t.Error("Corrupt blob should restore as empty, not fail")
	}

	// The store must stay fully usable afterwards
	sess := s.Create()
	if s.ActiveID() != sess.ID {
		t.Error("Store should work normally after a corrupt restore")
	}
}

func TestRestoreDefaultsNilMessages(t *testing.T) {
	kv := newFakeKV()
	kv.data[StorageKey] = []byte(`[{"id":"01ARZ3NDEKTSV4RRFFQ69G5FAV","title":"Old","lastModified":1700000000000}]`)

	s := NewStore(kv, nil, nil)
	s.Restore()

	got, ok := s.Get("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if !ok {
		t.Fatal("Expected the persisted session to restore")
	}
	if got.Messages == nil {
		t.Error("Missing messages field should restore as an empty slice")
	}
}

func TestWriteFailureKeepsStateUsable(t *testing.T) {
	kv := newFakeKV()
	s := NewStore(kv, nil, nil)

	kv.failNext = true
	sess := s.Create()

	// In-memory state wins even when the write fails
	if s.Len() != 1 || s.ActiveID() != sess.ID {
		t.Error("Failed persist should not roll back in-memory state")
	}

	s.Rename(sess.ID, "Recovered")
	if kv.writes != 1 {
		t.Errorf("Expected the follow-up write to land, got %d writes", kv.writes)
	}
}

func TestSubscribeAndDispose(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)

	count := 0
	dispose := s.Subscribe(func() { count++ })

	s.Create()
	if count != 1 {
		t.Fatalf("Expected 1 notification, got %d", count)
	}

	dispose()
	dispose() // idempotent
	s.Create()
	if count != 1 {
		t.Errorf("Disposed subscriber should not fire, got %d", count)
	}
}

func TestSubscriberMayReenter(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)

	creating := false
	s.Subscribe(func() {
		if s.Len() == 0 && !creating {
			creating = true
			s.Create()
			creating = false
		}
	})

	only := s.Create()
	s.Delete(only.ID)

	if s.Len() != 1 {
		t.Fatalf("Re-entrant create should leave 1 session, got %d", s.Len())
	}
	if s.ActiveID() == "" {
		t.Error("Re-entrant create should set the active id")
	}
}

func TestSessionsReturnsCopies(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)
	sess := s.Create()
	s.AppendMessage(sess.ID, types.ChatMessage{Role: types.RoleUser, Text: "original"})

	snapshot := s.Sessions()
	snapshot[0].Title = "mutated"
	snapshot[0].Messages[0].Text = "mutated"

	got, _ := s.Get(sess.ID)
	if got.Title == "mutated" || got.Messages[0].Text == "mutated" {
		t.Error("Mutating a snapshot should not affect the store")
	}
}

func TestStats(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)
	sess := s.Create()
	s.AppendMessage(sess.ID, types.ChatMessage{Role: types.RoleUser, Text: "one"})
	s.AppendMessage(sess.ID, types.ChatMessage{Role: types.RoleModel, Text: "two"})

	stats := s.Stats()
	if stats.TotalSessions != 1 || stats.TotalMessages != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.ActiveSessionID == nil || *stats.ActiveSessionID != sess.ID {
		t.Error("Stats should carry the active session id")
	}
}

func TestSetGroupMode(t *testing.T) {
	s := NewStore(newFakeKV(), nil, nil)
	sess := s.Create()

	if !s.SetGroupMode(sess.ID, true) {
		t.Fatal("SetGroupMode of known id should succeed")
	}
	got, _ := s.Get(sess.ID)
	if !got.IsGroupMode {
		t.Error("Group mode flag should be set")
	}
}
