package dashboard

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/brianly1003/radmin/internal/testutil"
)

func TestSnapshot_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.db")
	snap, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = snap.Close() }()

	a := conv("a", 1).WithMessage(Message{ID: "m1", Sender: SenderUser, Text: "hi", Timestamp: base.Add(time.Minute)})
	a.UnreadCount = 2
	a.Active = true
	b := conv("b", 30)
	status := SystemStatus{BotOnline: true, LLMOnline: true, ActiveUsers: 3}

	testutil.AssertNoError(t, snap.Save([]Conversation{a, b}, status), "snap.Save")

	got, gotStatus, err := snap.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, "b", "a")

	if gotStatus != status {
		t.Errorf("status = %+v, want %+v", gotStatus, status)
	}

	loaded := got[1]
	testutil.AssertEqual(t, 2, loaded.UnreadCount, "loaded.UnreadCount")
	testutil.AssertEqual(t, true, loaded.Active, "loaded.Active")
	testutil.AssertEqual(t, "hi", loaded.LastMessageText(), "loaded.LastMessageText()")
	if !loaded.LastUpdated.Equal(a.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", loaded.LastUpdated, a.LastUpdated)
	}
}

func TestSnapshot_SaveReplacesPrevious(t *testing.T) {
	snap, err := OpenSnapshot(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = snap.Close() }()

	testutil.AssertNoError(t, snap.Save([]Conversation{conv("a", 1), conv("b", 2)}, SystemStatus{}), "snap.Save")
	testutil.AssertNoError(t, snap.Save([]Conversation{conv("c", 3)}, SystemStatus{ActiveUsers: 1}), "snap.Save")

	got, status, err := snap.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, "c")
	testutil.AssertEqual(t, 1, status.ActiveUsers, "status.ActiveUsers")
}

func TestSnapshot_EmptyLoad(t *testing.T) {
	snap, err := OpenSnapshot(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = snap.Close() }()

	got, status, err := snap.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() returned %d conversations, want 0", len(got))
	}
	if status != (SystemStatus{}) {
		t.Errorf("status = %+v, want zero", status)
	}
}

func TestSnapshot_SaveStoreAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	snap, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store := NewStore(nil)
	store.Replace([]Conversation{conv("x", 5), conv("y", 6)})
	testutil.AssertNoError(t, snap.SaveStore(store), "snap.SaveStore")
	testutil.AssertNoError(t, snap.Close(), "snap.Close")

	reopened, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, _, err := reopened.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, got, "y", "x")
	testutil.AssertEqual(t, path, reopened.Path(), "reopened.Path()")
}
