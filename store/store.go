package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/internal/profile"
	"github.com/hrygo/skinsense/internal/version"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate creates the schema if it does not exist yet. Outside dev mode it
// refuses a database last migrated by a newer release, and records the
// current version once the schema is applied.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.driver.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate")
	}
	if s.profile == nil || s.profile.IsDev() || s.profile.Version == "" {
		return nil
	}

	current, err := s.driver.GetSystemSetting(ctx, SystemSettingSchemaVersion)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "failed to read schema version")
	}
	if current != nil && !version.IsVersionGreaterOrEqualThan(s.profile.Version, current.Value) {
		return errors.Errorf("database was migrated by version %s, refusing to run %s", current.Value, s.profile.Version)
	}
	if _, err := s.driver.UpsertSystemSetting(ctx, &SystemSetting{Name: SystemSettingSchemaVersion, Value: s.profile.Version}); err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}
	return nil
}

func (s *Store) CreateChatSession(ctx context.Context, create *ChatSession) (*ChatSession, error) {
	return s.driver.CreateChatSession(ctx, create)
}

// EnsureChatSession returns the session with create.UID, inserting it first
// when it does not exist.
func (s *Store) EnsureChatSession(ctx context.Context, create *ChatSession) (*ChatSession, error) {
	return s.driver.EnsureChatSession(ctx, create)
}

func (s *Store) GetChatSession(ctx context.Context, find *FindChatSession) (*ChatSession, error) {
	return s.driver.GetChatSession(ctx, find)
}

func (s *Store) CreateChatMessage(ctx context.Context, create *ChatMessage) (*ChatMessage, error) {
	return s.driver.CreateChatMessage(ctx, create)
}

// ListChatMessages returns messages in ascending id order.
func (s *Store) ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error) {
	return s.driver.ListChatMessages(ctx, find)
}

func (s *Store) CountChatMessagesAfter(ctx context.Context, sessionUID string, afterID int64) (int, error) {
	return s.driver.CountChatMessagesAfter(ctx, sessionUID, afterID)
}

func (s *Store) UpsertChatSummary(ctx context.Context, upsert *ChatSummary) (*ChatSummary, error) {
	return s.driver.UpsertChatSummary(ctx, upsert)
}

// GetChatSummary returns ErrNotFound when the session has no summary yet.
func (s *Store) GetChatSummary(ctx context.Context, sessionUID string) (*ChatSummary, error) {
	return s.driver.GetChatSummary(ctx, sessionUID)
}

func (s *Store) UpsertCatalogProduct(ctx context.Context, upsert *CatalogProduct) error {
	return s.driver.UpsertCatalogProduct(ctx, upsert)
}

func (s *Store) SearchCatalogProducts(ctx context.Context, find *FindCatalogProduct) ([]*CatalogProduct, error) {
	return s.driver.SearchCatalogProducts(ctx, find)
}

// GetCatalogProduct looks a product up by id, then by slug.
func (s *Store) GetCatalogProduct(ctx context.Context, idOrSlug string) (*CatalogProduct, error) {
	list, err := s.driver.SearchCatalogProducts(ctx, &FindCatalogProduct{ID: &idOrSlug, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		list, err = s.driver.SearchCatalogProducts(ctx, &FindCatalogProduct{Slug: &idOrSlug, Limit: 1})
		if err != nil {
			return nil, err
		}
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func (s *Store) UpsertCatalogRoutine(ctx context.Context, upsert *CatalogRoutine) error {
	return s.driver.UpsertCatalogRoutine(ctx, upsert)
}

func (s *Store) FindCatalogRoutine(ctx context.Context, find *FindCatalogRoutine) (*CatalogRoutine, error) {
	return s.driver.FindCatalogRoutine(ctx, find)
}

func (s *Store) UpsertCartItem(ctx context.Context, upsert *CartItem) (*CartItem, error) {
	return s.driver.UpsertCartItem(ctx, upsert)
}

func (s *Store) ListCartItems(ctx context.Context, find *FindCartItem) ([]*CartItem, error) {
	return s.driver.ListCartItems(ctx, find)
}

func (s *Store) UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error) {
	return s.driver.UpsertUserPreferences(ctx, upsert)
}

func (s *Store) GetUserPreferences(ctx context.Context, userID string) (*UserPreferences, error) {
	return s.driver.GetUserPreferences(ctx, userID)
}
