package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
)

var validate = validator.New()

// LoadSeedDir reads every *.yaml domain config in dir and upserts it into
// the store. Used by `zelfd -seed` to bootstrap a fresh registry database.
func LoadSeedDir(ctx context.Context, store *Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read seed dir: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		cfg, err := LoadSeedFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return count, err
		}

		if err := store.Upsert(ctx, cfg); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// LoadSeedFile parses and validates one YAML domain config.
func LoadSeedFile(path string) (*model.DomainConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}

	var cfg model.DomainConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid seed %s: %w", path, err)
	}

	return &cfg, nil
}
