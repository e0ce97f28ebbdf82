package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/grant-ranker/internal/filtering"
	"github.com/spigell/grant-ranker/internal/httpapi"
	"github.com/spigell/grant-ranker/internal/keywords"
	"github.com/spigell/grant-ranker/internal/logger"
	"github.com/spigell/grant-ranker/internal/matching"
	"github.com/spigell/grant-ranker/internal/metrics"
	"github.com/spigell/grant-ranker/internal/opportunity"
	"github.com/spigell/grant-ranker/internal/profilecache"
	"github.com/spigell/grant-ranker/internal/profilestore"
	"github.com/spigell/grant-ranker/internal/secrets"
	"github.com/spigell/grant-ranker/internal/semantic"
	"github.com/spigell/grant-ranker/internal/semantic/gemini"
	"github.com/spigell/grant-ranker/internal/semantic/openai"
)

// engine is everything a command needs to rank opportunities.
type engine struct {
	ranker *matching.Ranker
	cache  *profilecache.Cache
	close  func()
}

func newEngine(ctx context.Context, config *Config, log *zap.Logger) (*engine, error) {
	metrics.Register()

	table, err := loadKeywordTable(config.KeywordTable)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := newProfileStore(ctx, config.Profiles, log)
	if err != nil {
		return nil, fmt.Errorf("building profile store: %w", err)
	}

	sem, err := newSemanticScorer(ctx, config.Semantic, log)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("building semantic scorer: %w", err)
	}

	cache := profilecache.New(store, config.Cache, log)
	calc := matching.NewCalculator(config.Matching, table)
	ranker := matching.NewRanker(calc, cache, sem, config.Ranker, log)

	for _, st := range filtering.Describe(ranker.Calculator().Chain().Filters()) {
		log.Debug("exclusion rule", zap.String("name", st.Name), zap.Bool("enabled", st.Enabled), zap.String("reason", st.Reason))
	}
	log.Debug("engine ready",
		zap.String("keyword_table", table.Version),
		zap.Int("workers", config.Ranker.Workers),
	)

	return &engine{ranker: ranker, cache: cache, close: closeStore}, nil
}

func loadKeywordTable(path string) (*keywords.Table, error) {
	if strings.TrimSpace(path) == "" {
		return keywords.DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyword table: %w", err)
	}

	return keywords.LoadTable(data)
}

func newProfileStore(ctx context.Context, cfg *ProfilesConfig, log *zap.Logger) (profilestore.Store, func(), error) {
	noop := func() {}
	if cfg == nil {
		cfg = &ProfilesConfig{Backend: "dir", Dir: "profiles"}
	}

	switch backend := strings.ToLower(strings.TrimSpace(cfg.Backend)); backend {
	case "", "dir":
		return profilestore.NewDirStore(cfg.Dir), noop, nil

	case "http":
		if cfg.HTTP == nil || cfg.HTTP.BaseURL == "" {
			return nil, noop, fmt.Errorf("profiles.http.base-url is required for the http backend")
		}
		client, err := newHTTPClient(cfg.HTTP, "profile api token", log)
		if err != nil {
			return nil, noop, err
		}
		return profilestore.NewHTTPStore(client, log), noop, nil

	case "postgres":
		var dsn secrets.Source
		if cfg.Postgres != nil {
			dsn = secrets.Source{Name: "postgres dsn", Value: cfg.Postgres.DSN, File: cfg.Postgres.DSNFile, Env: "DATABASE_URL"}
		} else {
			dsn = secrets.Source{Name: "postgres dsn", Env: "DATABASE_URL"}
		}
		databaseURL, err := secrets.Load(dsn)
		if err != nil {
			return nil, noop, err
		}
		store, err := profilestore.Connect(ctx, databaseURL)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil

	case "sqlite":
		if cfg.SQLite == nil || cfg.SQLite.Path == "" {
			return nil, noop, fmt.Errorf("profiles.sqlite.path is required for the sqlite backend")
		}
		store, err := profilestore.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil

	default:
		return nil, noop, fmt.Errorf("unsupported profile backend: %s", cfg.Backend)
	}
}

func newHTTPClient(cfg *HTTPConfig, name string, log *zap.Logger) (*httpapi.Client, error) {
	token, err := secrets.Optional(secrets.Source{Name: name, Value: cfg.Token, File: cfg.TokenFile})
	if err != nil {
		return nil, err
	}
	return httpapi.New(cfg.BaseURL, token, log), nil
}

func newSemanticScorer(ctx context.Context, cfg *SemanticConfig, log *zap.Logger) (semantic.Scorer, error) {
	if cfg == nil {
		return semantic.Nop{}, nil
	}

	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case "", "none":
		return semantic.Nop{}, nil

	case "gemini":
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{Name: "gemini api key", Value: gc.APIKey, File: gc.APIKeyFile, Env: "GEMINI_API_KEY"})
		if err != nil {
			return nil, fmt.Errorf("%w (set semantic.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		genLogger := logger.WithProvider(log, provider, gc.Model)
		generator, err := gemini.NewGenerator(ctx, apiKey, gc.Model, genLogger)
		if err != nil {
			return nil, err
		}
		return gemini.NewScorer(generator, logger.WithProvider(log, provider, generator.Model()), cfg.MaxLogLength), nil

	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &OpenAIConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{Name: "openai api key", Value: oc.APIKey, File: oc.APIKeyFile, Env: "OPENAI_API_KEY"})
		if err != nil {
			return nil, fmt.Errorf("%w (set semantic.openai.api-key-file or OPENAI_API_KEY)", err)
		}

		return openai.NewScorer(&openai.Config{
			APIKey:     apiKey,
			BaseURL:    oc.BaseURL,
			Model:      oc.Model,
			Dimensions: oc.Dimensions,
			Provider:   provider,
			Logger:     logger.WithProvider(log, provider, oc.Model),
		}), nil

	default:
		return nil, fmt.Errorf("unsupported semantic provider: %s", cfg.Provider)
	}
}

// loadOpportunities reads the batch from a file when path is set, otherwise from the configured listing API.
func loadOpportunities(ctx context.Context, path string, cfg *OpportunitiesConfig, log *zap.Logger) ([]opportunity.FundingOpportunity, error) {
	if path == "" && cfg != nil {
		path = cfg.File
	}
	if path != "" {
		if path == "-" {
			data, err := readStdin()
			if err != nil {
				return nil, err
			}
			return opportunity.Decode(data, ".json")
		}
		return opportunity.LoadFile(path)
	}

	if cfg == nil || cfg.HTTP == nil || cfg.HTTP.BaseURL == "" {
		return nil, fmt.Errorf("no opportunities given (use --opportunities or opportunities.http.base-url)")
	}

	client, err := newHTTPClient(cfg.HTTP, "opportunity api token", log)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range cfg.Query {
		query.Set(k, v)
	}

	return opportunity.NewSource(client, query, log).List(ctx)
}
