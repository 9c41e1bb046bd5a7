// Package store persists favorites, settings and search history in a
// sqlite database, serviced by a single worker goroutine over channels.
// Navigation history is deliberately not persisted.
package store

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/colonnade-fm/colonnade/internal/debug"
)

type EventType int

const (
	FetchFavorites EventType = iota
	AddFavorite
	RemoveFavorite
	FetchSettings
	SaveSetting
	FetchSearchHistory
	AddSearchHistory
)

type Request struct {
	Op         EventType
	Path       string
	Key, Value string
	Query      string
}

type Response struct {
	Op        EventType
	Favorites []string
	Settings  map[string]string
	History   []string
	Err       error
}

type DB struct {
	conn         *sql.DB
	RequestChan  chan Request
	ResponseChan chan Response
}

func NewDB() *DB {
	return &DB{
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
	}
}

// Open initializes the database connection and schema.
func (d *DB) Open(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}

	// WAL allows simultaneous readers and writers; NORMAL is safe
	// against app crashes and faster than FULL
	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS favorites (
		path TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS search_history (
		query TEXT PRIMARY KEY,
		last_used DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	d.conn = db
	return nil
}

func (d *DB) Start() {
	for req := range d.RequestChan {
		debug.Log(debug.STORE, "Request: op=%d path=%q key=%q query=%q", req.Op, req.Path, req.Key, req.Query)
		switch req.Op {
		case FetchFavorites:
			d.fetchFavorites()
		case AddFavorite:
			d.execAndFetch("INSERT OR IGNORE INTO favorites (path) VALUES (?)", req.Path)
		case RemoveFavorite:
			d.execAndFetch("DELETE FROM favorites WHERE path = ?", req.Path)
		case FetchSettings:
			d.fetchSettings()
		case SaveSetting:
			d.saveSetting(req.Key, req.Value)
		case FetchSearchHistory:
			d.fetchSearchHistory()
		case AddSearchHistory:
			d.addSearchHistory(req.Query)
		}
	}
}

func (d *DB) fetchFavorites() {
	rows, err := d.conn.Query("SELECT path FROM favorites ORDER BY created_at ASC")
	if err != nil {
		d.ResponseChan <- Response{Op: FetchFavorites, Err: err}
		return
	}
	defer rows.Close()

	var favs []string
	for rows.Next() {
		var path string
		if rows.Scan(&path) == nil {
			favs = append(favs, path)
		}
	}
	d.ResponseChan <- Response{Op: FetchFavorites, Favorites: favs}
}

func (d *DB) execAndFetch(query, path string) {
	if _, err := d.conn.Exec(query, path); err != nil {
		log.Printf("Store Error: %v", err)
	}
	// Always re-fetch after a modification to sync consumers
	d.fetchFavorites()
}

func (d *DB) fetchSettings() {
	rows, err := d.conn.Query("SELECT key, value FROM settings")
	if err != nil {
		d.ResponseChan <- Response{Op: FetchSettings, Err: err}
		return
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if rows.Scan(&key, &value) == nil {
			settings[key] = value
		}
	}
	d.ResponseChan <- Response{Op: FetchSettings, Settings: settings}
}

func (d *DB) saveSetting(key, value string) {
	if _, err := d.conn.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
		log.Printf("Store Error saving setting: %v", err)
	}
	d.fetchSettings()
}

func (d *DB) fetchSearchHistory() {
	rows, err := d.conn.Query("SELECT query FROM search_history ORDER BY last_used DESC LIMIT 25")
	if err != nil {
		d.ResponseChan <- Response{Op: FetchSearchHistory, Err: err}
		return
	}
	defer rows.Close()

	var history []string
	for rows.Next() {
		var q string
		if rows.Scan(&q) == nil {
			history = append(history, q)
		}
	}
	d.ResponseChan <- Response{Op: FetchSearchHistory, History: history}
}

func (d *DB) addSearchHistory(query string) {
	if query == "" {
		return
	}
	// Upsert bumps last_used so repeats float to the top
	if _, err := d.conn.Exec(
		"INSERT INTO search_history (query) VALUES (?) ON CONFLICT(query) DO UPDATE SET last_used = CURRENT_TIMESTAMP",
		query); err != nil {
		log.Printf("Store Error saving search history: %v", err)
	}
	d.fetchSearchHistory()
}

func (d *DB) Close() {
	if d.conn != nil {
		d.conn.Close()
	}
}
