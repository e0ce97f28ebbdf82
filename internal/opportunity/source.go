package opportunity

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/grant-ranker/internal/httpapi"
)

const listPath = "opportunities"

// Source reads opportunities from a paginated HTTP listing.
type Source struct {
	client *httpapi.Client
	query  url.Values
	logger *zap.Logger
}

// NewSource creates a source listing {base}/opportunities with the given query.
func NewSource(client *httpapi.Client, query url.Values, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{client: client, query: query, logger: logger}
}

// List fetches every page and decodes the items.
func (s *Source) List(ctx context.Context) ([]FundingOpportunity, error) {
	items, err := s.client.GetItems(ctx, s.client.URL(listPath), s.query)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}

	var opportunities []FundingOpportunity
	cfg := &mapstructure.DecoderConfig{
		DecodeHook:       DateHook,
		WeaklyTypedInput: true,
		Result:           &opportunities,
		TagName:          "json",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode opportunities: %w", err)
	}

	s.logger.Debug("opportunities listed", zap.Int("count", len(opportunities)))

	return opportunities, nil
}
