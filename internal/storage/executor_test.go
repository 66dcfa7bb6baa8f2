package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixil98/go-presence/internal/session"
	"github.com/pixil98/go-testutil"
)

// blockingDatabase records executed transactions and lets tests hold
// executions open to observe the in-flight bound.
type blockingDatabase struct {
	mu       sync.Mutex
	executed []string
	release  chan struct{}
	fail     bool

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (d *blockingDatabase) Execute(ctx context.Context, tx Transaction) error {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		m := d.maxInFlight.Load()
		if n <= m || d.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if d.release != nil {
		<-d.release
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.executed = append(d.executed, tx.Name())
	if d.fail {
		return fmt.Errorf("disk full")
	}
	return nil
}

func (d *blockingDatabase) Nickname(context.Context, string) (string, error) {
	return "", ErrNotFound
}

func (d *blockingDatabase) JoinAddress(context.Context, string) (string, error) {
	return "", ErrNotFound
}

func (d *blockingDatabase) Sessions(context.Context, string) ([]*session.FinishedSession, error) {
	return nil, nil
}

func (d *blockingDatabase) Close() error { return nil }

func TestExecutor_Schedule(t *testing.T) {
	tests := map[string]struct {
		fail   bool
		expErr string
	}{
		"success": {},
		"failure is wrapped": {
			fail:   true,
			expErr: "executing register-user: disk full",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			db := &blockingDatabase{fail: tt.fail}
			e := NewExecutor(db)

			err := <-e.Schedule(context.Background(), RegisterUser{UserID: "alice"})

			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "executed", len(db.executed), 1)
		})
	}
}

func TestExecutor_CancelledContextStillWrites(t *testing.T) {
	db := &blockingDatabase{}
	e := NewExecutor(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := <-e.Schedule(ctx, StoreBanStatus{UserID: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "executed", len(db.executed), 1)
}

func TestExecutor_MaxInFlight(t *testing.T) {
	db := &blockingDatabase{release: make(chan struct{})}
	e := NewExecutor(db, WithMaxInFlight(2))

	for range 6 {
		e.Schedule(context.Background(), RegisterUser{UserID: "alice"})
	}

	deadline := time.Now().Add(time.Second)
	for db.inFlight.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(db.release)
	e.Wait()

	testutil.AssertEqual(t, "executed", len(db.executed), 6)
	testutil.AssertEqual(t, "max in flight", db.maxInFlight.Load(), int64(2))
	testutil.AssertEqual(t, "database", e.Database() == Database(db), true)
}
