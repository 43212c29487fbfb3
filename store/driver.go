package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// ChatSession model related methods.
	CreateChatSession(ctx context.Context, create *ChatSession) (*ChatSession, error)
	EnsureChatSession(ctx context.Context, create *ChatSession) (*ChatSession, error)
	GetChatSession(ctx context.Context, find *FindChatSession) (*ChatSession, error)

	// ChatMessage model related methods.
	CreateChatMessage(ctx context.Context, create *ChatMessage) (*ChatMessage, error)
	ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error)
	CountChatMessagesAfter(ctx context.Context, sessionUID string, afterID int64) (int, error)

	// ChatSummary model related methods.
	UpsertChatSummary(ctx context.Context, upsert *ChatSummary) (*ChatSummary, error)
	GetChatSummary(ctx context.Context, sessionUID string) (*ChatSummary, error)

	// Catalog model related methods.
	UpsertCatalogProduct(ctx context.Context, upsert *CatalogProduct) error
	SearchCatalogProducts(ctx context.Context, find *FindCatalogProduct) ([]*CatalogProduct, error)
	UpsertCatalogRoutine(ctx context.Context, upsert *CatalogRoutine) error
	FindCatalogRoutine(ctx context.Context, find *FindCatalogRoutine) (*CatalogRoutine, error)

	// Cart model related methods.
	UpsertCartItem(ctx context.Context, upsert *CartItem) (*CartItem, error)
	ListCartItems(ctx context.Context, find *FindCartItem) ([]*CartItem, error)

	// SystemSetting model related methods.
	UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error)
	GetSystemSetting(ctx context.Context, name string) (*SystemSetting, error)

	// UserPreferences model related methods.
	UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error)
	GetUserPreferences(ctx context.Context, userID string) (*UserPreferences, error)
}
