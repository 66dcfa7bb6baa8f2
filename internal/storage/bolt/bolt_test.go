package bolt

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/pixil98/go-presence/internal/playtime"
	"github.com/pixil98/go-presence/internal/session"
	"github.com/pixil98/go-presence/internal/storage"
	"go.etcd.io/bbolt"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "presence-test-*.db")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	s, err := NewFromFile(path, nil)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	return s, path
}

func finished(userID string, start, end int64) *session.FinishedSession {
	times := playtime.New("world", "survival", start)
	times.Observe("nether", "survival", start+(end-start)/2)
	times.Finalize(end)
	return &session.FinishedSession{
		ID:       uuid.New(),
		UserID:   userID,
		ServerID: "lobby",
		Start:    start,
		End:      end,
		Times:    times,
	}
}

func TestBoltStore(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	t.Run("missing user", func(t *testing.T) {
		_, err := s.Nickname(ctx, "alice")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("execute", func(t *testing.T) {
		txs := []storage.Transaction{
			storage.RegisterUser{UserID: "alice", PlayerName: "Alice", Registered: 100, LastSeen: 100},
			storage.StoreNickname{UserID: "alice", Nickname: "Ally", LastSeen: 100},
			storage.StoreSession{Session: finished("alice", 5000, 6000)},
			storage.StoreSession{Session: finished("alice", 100, 1100)},
			storage.StoreSession{Session: finished("bob", 200, 300)},
			storage.StoreSession{Session: finished("alice:eu", 300, 400)},
		}
		for _, tx := range txs {
			if err := s.Execute(ctx, tx); err != nil {
				t.Fatalf("executing %s: %v", tx.Name(), err)
			}
		}
	})

	t.Run("nickname without join address", func(t *testing.T) {
		nick, err := s.Nickname(ctx, "alice")
		if err != nil {
			t.Fatalf("Nickname failed: %v", err)
		}
		if nick != "Ally" {
			t.Errorf("expected nickname Ally, got %q", nick)
		}

		_, err = s.JoinAddress(ctx, "alice")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("sessions ordered per user", func(t *testing.T) {
		sessions, err := s.Sessions(ctx, "alice")
		if err != nil {
			t.Fatalf("Sessions failed: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("expected 2 sessions, got %d", len(sessions))
		}
		if sessions[0].Start != 100 || sessions[1].Start != 5000 {
			t.Errorf("sessions out of order: %d, %d", sessions[0].Start, sessions[1].Start)
		}
		if got := sessions[0].Times.Pair("nether", "survival"); got != 500 {
			t.Errorf("expected 500ms in nether, got %d", got)
		}
	})

	t.Run("sessions of ids sharing a prefix", func(t *testing.T) {
		sessions, err := s.Sessions(ctx, "alice:eu")
		if err != nil {
			t.Fatalf("Sessions failed: %v", err)
		}
		if len(sessions) != 1 || sessions[0].UserID != "alice:eu" {
			t.Errorf("expected only the alice:eu session, got %d sessions", len(sessions))
		}
	})

	t.Run("empty session", func(t *testing.T) {
		err := s.Execute(ctx, storage.StoreSession{})
		if err == nil {
			t.Error("expected error for empty session")
		}
	})

	t.Run("reopen", func(t *testing.T) {
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		db, err := bbolt.Open(path, 0600, nil)
		if err != nil {
			t.Fatalf("reopening: %v", err)
		}
		reopened, err := New(db)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer reopened.Close()

		u, err := reopened.user("alice")
		if err != nil {
			t.Fatalf("user failed: %v", err)
		}
		if u.LastSeen != 6000 {
			t.Errorf("expected last seen 6000, got %d", u.LastSeen)
		}
		if len(u.Sessions) != 0 {
			t.Errorf("expected sessions kept out of the user document, got %d", len(u.Sessions))
		}
	})
}
