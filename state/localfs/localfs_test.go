package localfs

import (
	"testing"

	"xdao.co/claimvault/commit"
	"xdao.co/claimvault/state"
	"xdao.co/claimvault/state/statekit"
)

func TestLocalFS_Conformance(t *testing.T) {
	statekit.RunStoreConformance(t, func(t *testing.T) state.Store {
		st, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return st
	})
}

func TestNew_RequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("New(\"\") should fail")
	}
}

func TestPut_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	st, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := commit.MustOf([]byte("persisted"))
	if err := st.Put(key, []byte("record")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	st2, err := New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := st2.Get(key)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "record" {
		t.Fatalf("Get after reopen = %q, want %q", got, "record")
	}
}
