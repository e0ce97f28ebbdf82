package profilestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/grant-ranker/internal/httpapi"
	"github.com/spigell/grant-ranker/internal/profile"
	"go.uber.org/zap"
)

// HTTPStore reads profiles from GET {base}/organizations/{id}/profile.
type HTTPStore struct {
	client *httpapi.Client
	logger *zap.Logger
}

func NewHTTPStore(client *httpapi.Client, logger *zap.Logger) *HTTPStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPStore{client: client, logger: logger}
}

func (s *HTTPStore) GetProfile(ctx context.Context, orgID string) (*profile.OrganizationProfile, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("organization id is required")
	}

	var doc map[string]any
	err := s.client.GetJSON(ctx, s.client.URL("organizations", orgID, "profile"), nil, &doc)
	if errors.Is(err, httpapi.ErrNotFound) {
		return nil, fmt.Errorf("organization %q: %w", orgID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile of organization %q: %w", orgID, err)
	}

	p, err := profile.FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("decode profile of organization %q: %w", orgID, err)
	}

	s.logger.Debug("profile fetched", zap.String("org_id", orgID), zap.String("source", "http"))
	return p, nil
}
