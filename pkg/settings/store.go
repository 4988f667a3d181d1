// Package settings reads the default print settings profile of the local user.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eolymp/direct-printing/pkg/printing"
)

var (
	ErrNoDefaultSettings = errors.New("no default settings")
	ErrNotFound          = fmt.Errorf("%w: file does not exist", ErrNoDefaultSettings)
	ErrParseFailed       = fmt.Errorf("%w: file cannot be parsed", ErrNoDefaultSettings)
)

// DefaultPath returns <user config dir>/direct-printing/settings.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}

	return filepath.Join(dir, "direct-printing", "settings.json"), nil
}

// Store loads the settings file at a fixed path. The file is read again on every Load.
type Store struct {
	path string
	log  *zap.Logger
}

func NewStore(path string, log *zap.Logger) *Store {
	return &Store{path: path, log: log}
}

func (s *Store) Load() (printing.PrintSettings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return printing.PrintSettings{}, ErrNotFound
	}

	if err != nil {
		s.log.Error("Failed to read default settings", zap.String("path", s.path), zap.Error(err))
		return printing.PrintSettings{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	var settings printing.PrintSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		s.log.Error("Failed to parse default settings", zap.String("path", s.path), zap.Error(err))
		return printing.PrintSettings{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if settings.Orientation != nil {
		o, ok := printing.ParseOrientation(string(*settings.Orientation))
		if !ok {
			s.log.Error("Default settings name an unknown orientation", zap.String("path", s.path), zap.String("orientation", string(*settings.Orientation)))
			return printing.PrintSettings{}, fmt.Errorf("%w: unknown orientation %q", ErrParseFailed, *settings.Orientation)
		}

		settings.Orientation = &o
	}

	return settings, nil
}
