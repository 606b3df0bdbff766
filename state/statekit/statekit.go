// Package statekit exports the conformance suite every state.Store backend
// must pass.
package statekit

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/claimvault/commit"
	"xdao.co/claimvault/state"
)

// NewStore constructs a fresh, empty Store instance for a test.
// The returned Store MUST be isolated from other tests.
type NewStore func(t *testing.T) state.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	key := commit.MustOf([]byte("statekit-key"))
	other := commit.MustOf([]byte("statekit-other-key"))

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		st := newStore(t)
		want := []byte(`{"record":"one"}`)
		if err := st.Put(key, want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := st.Get(key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch: got %q want %q", got, want)
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		st := newStore(t)
		if err := st.Put(key, []byte("v1")); err != nil {
			t.Fatalf("Put(v1) failed: %v", err)
		}
		if err := st.Put(key, []byte("v2")); err != nil {
			t.Fatalf("Put(v2) failed: %v", err)
		}
		got, err := st.Get(key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "v2" {
			t.Fatalf("Get after overwrite: got %q want %q", got, "v2")
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		st := newStore(t)
		if st.Has(key) {
			t.Fatalf("Has returned true for missing key")
		}
		if _, err := st.Get(key); !state.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
		if err := st.Put(key, []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !st.Has(key) {
			t.Fatalf("Has returned false after Put")
		}
		if st.Has(other) {
			t.Fatalf("Has leaked across keys")
		}
	})

	t.Run("DeleteIsAuthoritative", func(t *testing.T) {
		st := newStore(t)
		if err := st.Put(key, []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := st.Delete(key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if st.Has(key) {
			t.Fatalf("Has returned true after Delete")
		}
		// The second delete must fail, not silently succeed.
		if err := st.Delete(key); !state.IsNotFound(err) {
			t.Fatalf("second Delete: got err=%v want ErrNotFound", err)
		}
	})

	t.Run("RejectUndefKey", func(t *testing.T) {
		st := newStore(t)
		var undef cid.Cid
		if st.Has(undef) {
			t.Fatalf("Has should be false for undefined key")
		}
		if _, err := st.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined key")
		}
		if err := st.Put(undef, []byte("x")); err == nil {
			t.Fatalf("Put should fail for undefined key")
		}
		if err := st.Delete(undef); err == nil {
			t.Fatalf("Delete should fail for undefined key")
		}
	})
}
