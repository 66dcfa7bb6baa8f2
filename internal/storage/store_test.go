package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixil98/go-testutil"
)

func writeAsset(t *testing.T, path string, asset Asset[*UserRecord]) {
	t.Helper()

	data, err := json.Marshal(asset)
	if err != nil {
		t.Fatalf("failed to marshal test asset: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
}

func TestNewFileStore(t *testing.T) {
	tests := map[string]struct {
		setup    func(t *testing.T, dir string)
		expCount int
		expErr   string
	}{
		"empty directory": {
			setup:    func(t *testing.T, dir string) {},
			expCount: 0,
		},
		"existing users": {
			setup: func(t *testing.T, dir string) {
				writeAsset(t, filepath.Join(dir, "alice.json"), Asset[*UserRecord]{Version: 1, Identifier: "alice", Spec: &UserRecord{Name: "Alice"}})
				writeAsset(t, filepath.Join(dir, "bob.json"), Asset[*UserRecord]{Version: 1, Identifier: "bob", Spec: &UserRecord{Name: "Bob"}})
			},
			expCount: 2,
		},
		"non json files ignored": {
			setup: func(t *testing.T, dir string) {
				writeAsset(t, filepath.Join(dir, "alice.json"), Asset[*UserRecord]{Version: 1, Identifier: "alice", Spec: &UserRecord{}})
				if err := os.WriteFile(filepath.Join(dir, "alice.json.tmp"), []byte("partial"), 0644); err != nil {
					t.Fatalf("failed to write test file: %v", err)
				}
			},
			expCount: 1,
		},
		"invalid json": {
			setup: func(t *testing.T, dir string) {
				if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{invalid json`), 0644); err != nil {
					t.Fatalf("failed to write test file: %v", err)
				}
			},
			expErr: "unmarshalling asset",
		},
		"invalid record": {
			setup: func(t *testing.T, dir string) {
				writeAsset(t, filepath.Join(dir, "alice.json"), Asset[*UserRecord]{Version: 1, Identifier: "alice", Spec: &UserRecord{Registered: -5}})
			},
			expErr: "registered must not be negative",
		},
		"duplicate key": {
			setup: func(t *testing.T, dir string) {
				writeAsset(t, filepath.Join(dir, "one.json"), Asset[*UserRecord]{Version: 1, Identifier: "alice", Spec: &UserRecord{}})
				writeAsset(t, filepath.Join(dir, "two.json"), Asset[*UserRecord]{Version: 1, Identifier: "alice", Spec: &UserRecord{}})
			},
			expErr: "duplicate key detected",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			store, err := NewFileStore[*UserRecord](dir)
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "record count", len(store.GetAll()), tt.expCount)
		})
	}
}

func TestNewFileStore_NonExistentDirectory(t *testing.T) {
	_, err := NewFileStore[*UserRecord]("/nonexistent/path/that/does/not/exist")
	if err == nil {
		t.Error("expected error for non-existent directory")
	}
}

func TestFileStore_Update(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore[*UserRecord](dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = store.Update("alice", func(prev *UserRecord) (*UserRecord, error) {
		if prev != nil {
			t.Errorf("expected no previous record, got %v", prev)
		}
		return &UserRecord{Name: "Alice"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = store.Update("alice", func(prev *UserRecord) (*UserRecord, error) {
		return nil, fmt.Errorf("boom")
	})
	testutil.AssertErrorContains(t, err, "boom")

	err = store.Update("alice", func(prev *UserRecord) (*UserRecord, error) {
		return &UserRecord{Registered: -1}, nil
	})
	testutil.AssertErrorContains(t, err, "validating alice")

	got, ok := store.Get("alice")
	testutil.AssertEqual(t, "found", ok, true)
	testutil.AssertEqual(t, "name kept after failed updates", got.Name, "Alice")

	// A fresh store reads back what was written.
	reloaded, err := NewFileStore[*UserRecord](dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok = reloaded.Get("alice")
	testutil.AssertEqual(t, "reloaded found", ok, true)
	testutil.AssertEqual(t, "reloaded name", got.Name, "Alice")

	if _, err := os.Stat(filepath.Join(dir, "alice.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be renamed away")
	}
}

func TestFileStore_Update_InvalidID(t *testing.T) {
	store, err := NewFileStore[*UserRecord](t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]string{
		"empty":     "",
		"not utf-8": "\xff\xfe",
	}

	for name, id := range tests {
		t.Run(name, func(t *testing.T) {
			err := store.Update(id, func(prev *UserRecord) (*UserRecord, error) {
				return &UserRecord{}, nil
			})
			testutil.AssertErrorContains(t, err, "invalid id")
		})
	}
}

func TestFileStore_Update_OpaqueIDs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore[*UserRecord](dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := []string{"alice", "../etc", "eu:alice.b", "a b", "~616c696365"}
	for _, id := range ids {
		err := store.Update(id, func(prev *UserRecord) (*UserRecord, error) {
			return &UserRecord{Name: "name of " + id}, nil
		})
		if err != nil {
			t.Fatalf("updating %q: %v", id, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "files in store dir", len(entries), len(ids))
	if _, err := os.Stat(filepath.Join(dir, "alice.json")); err != nil {
		t.Errorf("expected plain ids to keep their file name: %v", err)
	}

	reloaded, err := NewFileStore[*UserRecord](dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range ids {
		got, ok := reloaded.Get(id)
		testutil.AssertEqual(t, id+" found", ok, true)
		testutil.AssertEqual(t, id+" name", got.Name, "name of "+id)
	}
}
