package profilestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/grant-ranker/internal/profile"
)

const selectProfile = `SELECT document FROM organization_profiles WHERE org_id = $1`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads profile documents from the organization_profiles table.
type PostgresStore struct {
	db    rowQuerier
	close func()
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: pool, close: pool.Close}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func (s *PostgresStore) GetProfile(ctx context.Context, orgID string) (*profile.OrganizationProfile, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("organization id is required")
	}

	var raw []byte
	err := s.db.QueryRow(ctx, selectProfile, orgID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("organization %q: %w", orgID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile of organization %q: %w", orgID, err)
	}

	return decodeJSONDocument(orgID, raw)
}

// decodeJSONDocument decodes a JSON profile document as stored in SQL backends.
func decodeJSONDocument(orgID string, raw []byte) (*profile.OrganizationProfile, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile of organization %q: %w", orgID, err)
	}

	p, err := profile.FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("decode profile of organization %q: %w", orgID, err)
	}
	return p, nil
}
