package surrealdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// UserStore keeps per-user documents as generic UserRecords in user_data.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{
		db:     db,
		logger: logger,
	}
}

func recordID(userID, subject, key string) string {
	return userID + "_" + subject + "_" + key
}

func (s *UserStore) Get(ctx context.Context, userID, subject, key string) (*models.UserRecord, error) {
	record, err := surrealdb.Select[models.UserRecord](ctx, s.db, surrealmodels.NewRecordID(tableUserData, recordID(userID, subject, key)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%s %s: %w", subject, key, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select user record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%s %s: %w", subject, key, interfaces.ErrNotFound)
	}
	return record, nil
}

func (s *UserStore) Put(ctx context.Context, record *models.UserRecord) error {
	id := recordID(record.UserID, record.Subject, record.Key)
	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tableUserData, id), "record": record}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to put user record after retries: %w", lastErr)
}

// Delete removes a record, returning ErrNotFound when there was none.
func (s *UserStore) Delete(ctx context.Context, userID, subject, key string) error {
	if _, err := s.Get(ctx, userID, subject, key); err != nil {
		return err
	}
	_, err := surrealdb.Delete[models.UserRecord](ctx, s.db, surrealmodels.NewRecordID(tableUserData, recordID(userID, subject, key)))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete user record: %w", err)
	}
	return nil
}

func (s *UserStore) List(ctx context.Context, userID, subject string) ([]models.UserRecord, error) {
	sql := "SELECT * FROM user_data WHERE user_id = $user_id AND subject = $subject ORDER BY datetime ASC"
	vars := map[string]any{
		"user_id": userID,
		"subject": subject,
	}

	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list user records: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}

// ListUsers returns the distinct users holding at least one record of subject.
func (s *UserStore) ListUsers(ctx context.Context, subject string) ([]string, error) {
	sql := "SELECT user_id FROM user_data WHERE subject = $subject"
	vars := map[string]any{"subject": subject}

	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	seen := make(map[string]bool)
	var users []string
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			if r.UserID == "" || seen[r.UserID] {
				continue
			}
			seen[r.UserID] = true
			users = append(users, r.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

func putDocument(ctx context.Context, s *UserStore, userID, subject, key string, created time.Time, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", subject, err)
	}
	version := 1
	if existing, err := s.Get(ctx, userID, subject, key); err == nil {
		version = existing.Version + 1
	}
	return s.Put(ctx, &models.UserRecord{
		UserID:   userID,
		Subject:  subject,
		Key:      key,
		Value:    string(data),
		Version:  version,
		DateTime: created,
	})
}

// --- HoldingStore ---

type holdingStore struct {
	users *UserStore
}

func (h *holdingStore) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	records, err := h.users.List(ctx, userID, models.SubjectHolding)
	if err != nil {
		return nil, err
	}
	holdings := make([]models.Holding, 0, len(records))
	for _, r := range records {
		var holding models.Holding
		if err := json.Unmarshal([]byte(r.Value), &holding); err != nil {
			h.users.logger.Warn().Err(err).Str("user", userID).Str("key", r.Key).Msg("Skipping undecodable holding")
			continue
		}
		holdings = append(holdings, holding)
	}
	return holdings, nil
}

func (h *holdingStore) GetHolding(ctx context.Context, userID, id string) (*models.Holding, error) {
	record, err := h.users.Get(ctx, userID, models.SubjectHolding, id)
	if err != nil {
		return nil, err
	}
	var holding models.Holding
	if err := json.Unmarshal([]byte(record.Value), &holding); err != nil {
		return nil, fmt.Errorf("failed to decode holding %s: %w", id, err)
	}
	return &holding, nil
}

func (h *holdingStore) SaveHolding(ctx context.Context, userID string, holding *models.Holding) error {
	if holding == nil || holding.ID == "" {
		return fmt.Errorf("holding id is required")
	}
	return putDocument(ctx, h.users, userID, models.SubjectHolding, holding.ID, holding.CreatedAt, holding)
}

func (h *holdingStore) DeleteHolding(ctx context.Context, userID, id string) error {
	return h.users.Delete(ctx, userID, models.SubjectHolding, id)
}

func (h *holdingStore) ListUsers(ctx context.Context) ([]string, error) {
	return h.users.ListUsers(ctx, models.SubjectHolding)
}

// --- WatchlistStore ---

type watchlistStore struct {
	users *UserStore
}

func (w *watchlistStore) ListWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	records, err := w.users.List(ctx, userID, models.SubjectWatchlist)
	if err != nil {
		return nil, err
	}
	items := make([]models.WatchlistItem, 0, len(records))
	for _, r := range records {
		var item models.WatchlistItem
		if err := json.Unmarshal([]byte(r.Value), &item); err != nil {
			w.users.logger.Warn().Err(err).Str("user", userID).Str("key", r.Key).Msg("Skipping undecodable watchlist item")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (w *watchlistStore) SaveWatchlistItem(ctx context.Context, userID string, item *models.WatchlistItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("watchlist item id is required")
	}
	return putDocument(ctx, w.users, userID, models.SubjectWatchlist, item.ID, item.CreatedAt, item)
}

func (w *watchlistStore) DeleteWatchlistItem(ctx context.Context, userID, id string) error {
	return w.users.Delete(ctx, userID, models.SubjectWatchlist, id)
}

func (w *watchlistStore) ListUsers(ctx context.Context) ([]string, error) {
	return w.users.ListUsers(ctx, models.SubjectWatchlist)
}
