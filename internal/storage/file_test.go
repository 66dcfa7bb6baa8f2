package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestFileDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := NewFileDatabase(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = db.Nickname(ctx, "alice")
	testutil.AssertEqual(t, "missing nickname", errors.Is(err, ErrNotFound), true)

	txs := []Transaction{
		RegisterUser{UserID: "alice", PlayerName: "Alice", Registered: 100, LastSeen: 100},
		StoreNickname{UserID: "alice", Nickname: "Ally", LastSeen: 100},
		StoreJoinAddress{UserID: "alice", Address: "198.51.100.4", LastSeen: 100},
		StoreSession{Session: finished("alice", 100, 1100)},
	}
	for _, tx := range txs {
		if err := db.Execute(ctx, tx); err != nil {
			t.Fatalf("executing %s: %v", tx.Name(), err)
		}
	}

	err = db.Execute(ctx, unknownTx{})
	testutil.AssertErrorContains(t, err, "unknown transaction")

	reopened, err := NewFileDatabase(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nick, err := reopened.Nickname(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "nickname", nick, "Ally")

	addr, err := reopened.JoinAddress(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "address", addr, "198.51.100.4")

	sessions, err := reopened.Sessions(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "sessions", len(sessions), 1)
	testutil.AssertEqual(t, "play time", sessions[0].Times.Total(), int64(1000))

	u, ok := reopened.User("alice")
	testutil.AssertEqual(t, "user found", ok, true)
	testutil.AssertEqual(t, "registered", u.Registered, int64(100))
	testutil.AssertEqual(t, "last seen", u.LastSeen, int64(1100))

	none, err := reopened.Sessions(ctx, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "unknown user sessions", len(none), 0)
}

func TestFileDatabase_OpaqueUserIDs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := NewFileDatabase(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"eu:alice", "alice.b", "steam/7656119"} {
		if err := db.Execute(ctx, StoreNickname{UserID: id, Nickname: "nick " + id, LastSeen: 100}); err != nil {
			t.Fatalf("storing nickname of %q: %v", id, err)
		}
	}

	reopened, err := NewFileDatabase(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nick, err := reopened.Nickname(ctx, "steam/7656119")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "nickname", nick, "nick steam/7656119")
}
