package main

import (
	"path/filepath"
	"testing"
)

func TestSessionStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := newSessionStore(t.TempDir(), []byte("correct-passphrase"))
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}

	want := &sessionState{
		PeerID:      "bob",
		IsInitiator: true,
		Status:      "Completed",
		ChannelKey:  make([]byte, 32),
		SendSeq:     7,
	}
	for i := range want.ChannelKey {
		want.ChannelKey[i] = byte(i)
	}

	if err := store.save("alice|bob|1000", want); err != nil {
		t.Fatalf("save() error = %v", err)
	}

	got, err := store.load("alice|bob|1000")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if got.PeerID != want.PeerID || got.Status != want.Status || got.SendSeq != want.SendSeq {
		t.Errorf("load() = %+v, want %+v", got, want)
	}
	if string(got.ChannelKey) != string(want.ChannelKey) {
		t.Errorf("load() ChannelKey mismatch")
	}
}

func TestSessionStoreLoadMissingReturnsNotFound(t *testing.T) {
	store, err := newSessionStore(t.TempDir(), []byte("pw"))
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}
	if _, err := store.load("no-such-session"); err != errSessionNotFound {
		t.Errorf("load() error = %v, want errSessionNotFound", err)
	}
}

func TestSessionStoreWrongPassphraseFailsToDecrypt(t *testing.T) {
	dir := t.TempDir()
	writer, err := newSessionStore(dir, []byte("right"))
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}
	if err := writer.save("s1", &sessionState{PeerID: "bob"}); err != nil {
		t.Fatalf("save() error = %v", err)
	}

	reader, err := newSessionStore(dir, []byte("wrong"))
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}
	if _, err := reader.load("s1"); err == nil {
		t.Error("load() with wrong passphrase succeeded, want error")
	}
}

func TestSessionStorePathSanitizesSeparators(t *testing.T) {
	store := &sessionStore{dir: "/tmp/state"}
	got := store.path("alice|bob|1000")
	want := filepath.Join("/tmp/state", "alice_bob_1000.session.json")
	if got != want {
		t.Errorf("path() = %q, want %q", got, want)
	}
}

func TestSessionStoreDeleteIsIdempotent(t *testing.T) {
	store, err := newSessionStore(t.TempDir(), []byte("pw"))
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}
	if err := store.save("s1", &sessionState{PeerID: "bob"}); err != nil {
		t.Fatalf("save() error = %v", err)
	}
	if err := store.delete("s1"); err != nil {
		t.Fatalf("delete() error = %v", err)
	}
	if err := store.delete("s1"); err != nil {
		t.Errorf("delete() on already-deleted session error = %v, want nil", err)
	}
}
