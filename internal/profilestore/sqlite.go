package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// sqlite3 driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/spigell/grant-ranker/internal/profile"
)

const selectProfileSQLite = `SELECT document FROM organization_profiles WHERE org_id = ?`

// SQLiteStore reads profile documents from a local SQLite export of organization_profiles.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path read-only.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func (s *SQLiteStore) GetProfile(ctx context.Context, orgID string) (*profile.OrganizationProfile, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("organization id is required")
	}

	var raw string
	err := s.db.QueryRowContext(ctx, selectProfileSQLite, orgID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization %q: %w", orgID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile of organization %q: %w", orgID, err)
	}

	return decodeJSONDocument(orgID, []byte(raw))
}
