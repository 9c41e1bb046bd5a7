package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db := NewDB()
	if err := db.Open(filepath.Join(t.TempDir(), "colonnade.db")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	go db.Start()
	t.Cleanup(func() {
		close(db.RequestChan)
		db.Close()
	})
	return db
}

func awaitResponse(t *testing.T, db *DB, op EventType) Response {
	t.Helper()
	for {
		select {
		case resp := <-db.ResponseChan:
			if resp.Err != nil {
				t.Fatalf("op %d returned error: %v", resp.Op, resp.Err)
			}
			if resp.Op == op {
				return resp
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for op %d", op)
		}
	}
}

func TestFavorites(t *testing.T) {
	db := openTestDB(t)

	db.RequestChan <- Request{Op: FetchFavorites}
	resp := awaitResponse(t, db, FetchFavorites)
	if len(resp.Favorites) != 0 {
		t.Fatalf("fresh db has %d favorites", len(resp.Favorites))
	}

	db.RequestChan <- Request{Op: AddFavorite, Path: "/home/user/docs"}
	resp = awaitResponse(t, db, FetchFavorites)
	if len(resp.Favorites) != 1 || resp.Favorites[0] != "/home/user/docs" {
		t.Fatalf("favorites = %v", resp.Favorites)
	}

	// Duplicate adds are ignored
	db.RequestChan <- Request{Op: AddFavorite, Path: "/home/user/docs"}
	resp = awaitResponse(t, db, FetchFavorites)
	if len(resp.Favorites) != 1 {
		t.Fatalf("duplicate favorite stored, got %v", resp.Favorites)
	}

	db.RequestChan <- Request{Op: RemoveFavorite, Path: "/home/user/docs"}
	resp = awaitResponse(t, db, FetchFavorites)
	if len(resp.Favorites) != 0 {
		t.Fatalf("favorite not removed, got %v", resp.Favorites)
	}
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	db.RequestChan <- Request{Op: SaveSetting, Key: "theme", Value: "dark"}
	resp := awaitResponse(t, db, FetchSettings)
	if resp.Settings["theme"] != "dark" {
		t.Fatalf("settings = %v", resp.Settings)
	}

	// Overwrite
	db.RequestChan <- Request{Op: SaveSetting, Key: "theme", Value: "light"}
	resp = awaitResponse(t, db, FetchSettings)
	if resp.Settings["theme"] != "light" {
		t.Fatalf("settings = %v", resp.Settings)
	}
}

func TestSearchHistory(t *testing.T) {
	db := openTestDB(t)

	for _, q := range []string{"invoice", "report", "invoice"} {
		db.RequestChan <- Request{Op: AddSearchHistory, Query: q}
		awaitResponse(t, db, FetchSearchHistory)
	}

	db.RequestChan <- Request{Op: FetchSearchHistory}
	resp := awaitResponse(t, db, FetchSearchHistory)

	// Repeats are deduplicated
	if len(resp.History) != 2 {
		t.Fatalf("history = %v, want 2 entries", resp.History)
	}
	seen := map[string]bool{}
	for _, q := range resp.History {
		seen[q] = true
	}
	if !seen["invoice"] || !seen["report"] {
		t.Errorf("history = %v", resp.History)
	}

	// Empty queries are never stored
	db.RequestChan <- Request{Op: AddSearchHistory, Query: ""}
	db.RequestChan <- Request{Op: FetchSearchHistory}
	resp = awaitResponse(t, db, FetchSearchHistory)
	if len(resp.History) != 2 {
		t.Errorf("empty query stored: %v", resp.History)
	}
}
