package cmd

import (
	"errors"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/grant-ranker/internal/matching"
	"github.com/spigell/grant-ranker/internal/profilecache"
	"github.com/spigell/grant-ranker/internal/server"
)

const (
	app       = "grant-ranker"
	envPrefix = "GRANT_RANKER"
)

type Config struct {
	KeywordTable  string                `mapstructure:"keyword-table"`
	Matching      matching.Config       `mapstructure:"matching"`
	Ranker        matching.RankerConfig `mapstructure:"ranker"`
	Profiles      *ProfilesConfig       `mapstructure:"profiles"`
	Cache         profilecache.Config   `mapstructure:"cache"`
	Semantic      *SemanticConfig       `mapstructure:"semantic"`
	Opportunities *OpportunitiesConfig  `mapstructure:"opportunities"`
	Server        server.Config         `mapstructure:"server"`
}

type ProfilesConfig struct {
	// Backend is one of "dir", "http", "postgres" or "sqlite".
	Backend  string          `mapstructure:"backend"`
	Dir      string          `mapstructure:"dir"`
	HTTP     *HTTPConfig     `mapstructure:"http"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	SQLite   *SQLiteConfig   `mapstructure:"sqlite"`
}

type HTTPConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
}

type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type SemanticConfig struct {
	// Provider is one of "none", "gemini" or "openai".
	Provider     string        `mapstructure:"provider"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

type OpportunitiesConfig struct {
	File string      `mapstructure:"file"`
	HTTP *HTTPConfig `mapstructure:"http"`
	// Query is passed as-is to the listing endpoint.
	Query map[string]string `mapstructure:"query"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "grant-ranker ranks funding opportunities against a nonprofit organization profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is grant-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env is fine, it only supplements the environment.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("profiles.backend", "dir")
	viper.SetDefault("profiles.dir", "profiles")
	viper.SetDefault("semantic.provider", "none")
	viper.SetDefault("semantic.max-log-length", 300)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional when running with defaults, but a broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

const redactedValue = "[redacted]"

// redacted returns a copy of the config safe to log: inline secrets are
// replaced by a marker, secret file paths are kept.
func (c *Config) redacted() *Config {
	out := *c
	out.Server.APIKeys = nil
	if len(c.Server.APIKeys) > 0 {
		out.Server.APIKeys = []string{redactedValue}
	}

	if c.Profiles != nil {
		profiles := *c.Profiles
		profiles.HTTP = c.Profiles.HTTP.redacted()
		if c.Profiles.Postgres != nil {
			pg := *c.Profiles.Postgres
			pg.DSN = redact(pg.DSN)
			profiles.Postgres = &pg
		}
		out.Profiles = &profiles
	}

	if c.Semantic != nil {
		sem := *c.Semantic
		if c.Semantic.Gemini != nil {
			gc := *c.Semantic.Gemini
			gc.APIKey = redact(gc.APIKey)
			sem.Gemini = &gc
		}
		if c.Semantic.OpenAI != nil {
			oc := *c.Semantic.OpenAI
			oc.APIKey = redact(oc.APIKey)
			sem.OpenAI = &oc
		}
		out.Semantic = &sem
	}

	if c.Opportunities != nil {
		opps := *c.Opportunities
		opps.HTTP = c.Opportunities.HTTP.redacted()
		out.Opportunities = &opps
	}

	return &out
}

func (c *HTTPConfig) redacted() *HTTPConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Token = redact(out.Token)
	return &out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return redactedValue
}

// getConfig decodes the viper state on top of the built-in defaults.
func getConfig() (*Config, error) {
	config := &Config{
		Matching: matching.DefaultConfig(),
		Ranker:   matching.DefaultRankerConfig(),
		Cache:    profilecache.DefaultConfig(),
		Server:   server.DefaultConfig(),
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if err := config.Matching.Weights.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
