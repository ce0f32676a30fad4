// Package filestore implements file-based JSON storage for holdings,
// watchlists and cached stock history.
//
// Layout under the base path:
//
//	users/<user>/user.json
//	users/<user>/holdings/<id>.json
//	users/<user>/watchlist/<id>.json
//	market/history/<SYMBOL>.json
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
)

const (
	usersDir     = "users"
	holdingsDir  = "holdings"
	watchlistDir = "watchlist"
	historyDir   = "market/history"
	userMetaKey  = "user"
)

// userMeta maps a sanitised user directory back to the raw user id.
type userMeta struct {
	UserID string `json:"user_id"`
}

// Store provides file-based JSON storage. Writes are atomic (temp file then
// rename) and serialised per store.
type Store struct {
	basePath string
	logger   *common.Logger
	mu       sync.RWMutex

	holdings  *holdingStore
	watchlist *watchlistStore
	history   *historyStore
}

var _ interfaces.StorageManager = (*Store)(nil)

// NewStore creates a file store rooted at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path is required")
	}
	for _, dir := range []string{path, filepath.Join(path, usersDir), filepath.Join(path, historyDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store path %s: %w", dir, err)
		}
	}

	s := &Store{basePath: path, logger: logger}
	s.holdings = &holdingStore{store: s}
	s.watchlist = &watchlistStore{store: s}
	s.history = &historyStore{store: s}

	logger.Info().Str("path", path).Msg("File store opened")
	return s, nil
}

func (s *Store) HoldingStore() interfaces.HoldingStore {
	return s.holdings
}

func (s *Store) WatchlistStore() interfaces.WatchlistStore {
	return s.watchlist
}

func (s *Store) HistoricalCacheStore() interfaces.HistoricalCacheStore {
	return s.history
}

func (s *Store) Backend() string {
	return "file"
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

func (s *Store) userDir(userID, kind string) string {
	return filepath.Join(s.basePath, usersDir, sanitizeKey(userID), kind)
}

// recordUser writes the raw user id next to the user's records.
// Caller holds s.mu for writing.
func (s *Store) recordUser(userID string) error {
	dir := filepath.Join(s.basePath, usersDir, sanitizeKey(userID))
	var meta userMeta
	if err := readJSON(dir, userMetaKey, &meta); err == nil && meta.UserID == userID {
		return nil
	}
	return writeJSON(dir, userMetaKey, userMeta{UserID: userID})
}

// usersWith returns the users whose kind directory holds at least one record.
func (s *Store) usersWith(kind string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.basePath, usersDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var users []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.basePath, usersDir, e.Name())
		keys, err := listKeys(filepath.Join(dir, kind))
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			continue
		}
		userID := e.Name()
		var meta userMeta
		if err := readJSON(dir, userMetaKey, &meta); err == nil && meta.UserID != "" {
			userID = meta.UserID
		}
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}

// --- helpers ---

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

func filePath(dir, key string) string {
	return filepath.Join(dir, sanitizeKey(key)+".json")
}

func readJSON(dir, key string, dest interface{}) error {
	path := filePath(dir, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("'%s': %w", key, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("'%s' is empty: %w", key, interfaces.ErrNotFound)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(dir, key string, data interface{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	target := filePath(dir, key)
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(jsonData); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func listKeys(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".tmp-") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys, nil
}

func deleteJSON(dir, key string) error {
	err := os.Remove(filePath(dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("'%s': %w", key, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
