package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

// Server - известный игровой сервер: найденный через discovery
// или добавленный вручную.
type Server struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	Transport string    `json:"transport"`
	LastSeen  time.Time `json:"last_seen"`
}

// Sample - один замер RTT до сервера через указанный транспорт.
type Sample struct {
	Address   string        `json:"address"`
	Transport string        `json:"transport"`
	RTT       time.Duration `json:"rtt"`
	Taken     time.Time     `json:"taken"`
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}
	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	log.Println("Database initialized successfully")
	return storage, nil
}

func (s *Storage) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS servers (
		address TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		transport TEXT NOT NULL,
		last_seen DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		transport TEXT NOT NULL,
		rtt_ns INTEGER NOT NULL,
		taken DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// SaveServer записывает сервер или обновляет время, когда он был виден
func (s *Storage) SaveServer(srv Server) error {
	query := `
	INSERT INTO servers (address, name, transport, last_seen)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(address) DO UPDATE SET
		name = excluded.name,
		transport = excluded.transport,
		last_seen = excluded.last_seen
	`
	_, err := s.db.Exec(query, srv.Address, srv.Name, srv.Transport, srv.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to save server: %w", err)
	}
	return nil
}

// ListServers возвращает известные серверы, свежие - первыми
func (s *Storage) ListServers() ([]Server, error) {
	rows, err := s.db.Query(`SELECT address, name, transport, last_seen FROM servers ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var servers []Server
	for rows.Next() {
		var srv Server
		if err := rows.Scan(&srv.Address, &srv.Name, &srv.Transport, &srv.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan server row: %w", err)
		}
		servers = append(servers, srv)
	}

	return servers, rows.Err()
}

// SaveSample записывает замер RTT
func (s *Storage) SaveSample(sample Sample) error {
	query := `INSERT INTO samples (address, transport, rtt_ns, taken) VALUES (?, ?, ?, ?)`
	_, err := s.db.Exec(query, sample.Address, sample.Transport, sample.RTT.Nanoseconds(), sample.Taken)
	if err != nil {
		return fmt.Errorf("failed to save sample: %w", err)
	}
	return nil
}

// RecentSamples возвращает последние limit замеров по адресу
func (s *Storage) RecentSamples(address string, limit int) ([]Sample, error) {
	rows, err := s.db.Query(
		`SELECT address, transport, rtt_ns, taken FROM samples WHERE address = ? ORDER BY taken DESC LIMIT ?`,
		address, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		var rttNs int64
		if err := rows.Scan(&sample.Address, &sample.Transport, &rttNs, &sample.Taken); err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		sample.RTT = time.Duration(rttNs)
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

// Cleanup удаляет серверы, которых не было видно дольше maxAge
func (s *Storage) Cleanup(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	_, err := s.db.Exec(`DELETE FROM servers WHERE last_seen < ?`, cutoff)
	return err
}

func (s *Storage) Close() error {
	return s.db.Close()
}
