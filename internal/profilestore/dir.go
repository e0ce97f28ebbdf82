package profilestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/spigell/grant-ranker/internal/profile"
)

// DirStore reads profiles from <dir>/<orgID>.yaml, .yml or .toml.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

func (s *DirStore) GetProfile(ctx context.Context, orgID string) (*profile.OrganizationProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orgID = strings.TrimSpace(orgID)
	if orgID == "" || orgID != filepath.Base(orgID) || strings.HasPrefix(orgID, ".") {
		return nil, fmt.Errorf("invalid organization id %q", orgID)
	}

	var (
		data []byte
		ext  string
		err  error
	)
	for _, ext = range []string{".yaml", ".yml", ".toml"} {
		data, err = os.ReadFile(filepath.Join(s.dir, orgID+ext))
		if !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("organization %q: %w", orgID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read profile of organization %q: %w", orgID, err)
	}

	var doc map[string]any
	if ext == ".toml" {
		err = toml.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse profile of organization %q: %w", orgID, err)
	}

	p, err := profile.FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("decode profile of organization %q: %w", orgID, err)
	}
	return p, nil
}
