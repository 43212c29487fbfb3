package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skinsense/internal/profile"
	"github.com/hrygo/skinsense/store"
)

func newTestDB(t *testing.T) store.Driver {
	t.Helper()
	driver, err := NewDB(&profile.Profile{DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func TestNewDBRequiresDSN(t *testing.T) {
	_, err := NewDB(&profile.Profile{})
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.Migrate(context.Background()))
}

func TestChatSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	created, err := d.CreateChatSession(ctx, &store.ChatSession{UID: "s1", UserID: "u1"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "{}", created.Config)

	uid := "s1"
	got, err := d.GetChatSession(ctx, &store.FindChatSession{UID: &uid})
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	missing := "nope"
	_, err = d.GetChatSession(ctx, &store.FindChatSession{UID: &missing})
	assert.ErrorIs(t, err, store.ErrNotFound)

	ensured, err := d.EnsureChatSession(ctx, &store.ChatSession{UID: "s1", UserID: "other"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, ensured.ID)
	assert.Equal(t, "u1", ensured.UserID, "existing session is not overwritten")

	fresh, err := d.EnsureChatSession(ctx, &store.ChatSession{UID: "client-id"})
	require.NoError(t, err)
	assert.Equal(t, "client-id", fresh.UID)
}

func TestChatMessagesWindow(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	var ids []int64
	for _, content := range []string{"one", "two", "three", "four"} {
		m, err := d.CreateChatMessage(ctx, &store.ChatMessage{SessionUID: "s1", Role: "user", Content: content})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	_, err := d.CreateChatMessage(ctx, &store.ChatMessage{SessionUID: "s2", Role: "user", Content: "elsewhere"})
	require.NoError(t, err)

	all, err := d.ListChatMessages(ctx, &store.FindChatMessage{SessionUID: "s1"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "one", all[0].Content)

	last, err := d.ListChatMessages(ctx, &store.FindChatMessage{SessionUID: "s1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "three", last[0].Content)
	assert.Equal(t, "four", last[1].Content)

	after, err := d.ListChatMessages(ctx, &store.FindChatMessage{SessionUID: "s1", AfterID: ids[2]})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "four", after[0].Content)

	count, err := d.CountChatMessagesAfter(ctx, "s1", ids[0])
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChatSummaryUpsert(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	_, err := d.GetChatSummary(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = d.UpsertChatSummary(ctx, &store.ChatSummary{SessionUID: "s1", Content: "first", LastMessageID: 3})
	require.NoError(t, err)
	_, err = d.UpsertChatSummary(ctx, &store.ChatSummary{SessionUID: "s1", Content: "second", LastMessageID: 7})
	require.NoError(t, err)

	got, err := d.GetChatSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
	assert.Equal(t, int64(7), got.LastMessageID)
}

func TestCatalogSearch(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	products := []*store.CatalogProduct{
		{ID: "p1", Slug: "hydra-serum", Name: "Hydra Serum", Category: "Serums", SkinTypes: "dry,normal", Document: `{"_id":"p1"}`},
		{ID: "p2", Slug: "clay-mask", Name: "Clay Mask", Category: "Masks", SkinTypes: "oily", Document: `{"_id":"p2","benefits":["pore care"]}`},
	}
	for _, p := range products {
		require.NoError(t, d.UpsertCatalogProduct(ctx, p))
	}

	byQuery, err := d.SearchCatalogProducts(ctx, &store.FindCatalogProduct{Query: "hydra"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "p1", byQuery[0].ID)

	byDocument, err := d.SearchCatalogProducts(ctx, &store.FindCatalogProduct{Query: "pore"})
	require.NoError(t, err)
	require.Len(t, byDocument, 1)
	assert.Equal(t, "p2", byDocument[0].ID)

	byCategory, err := d.SearchCatalogProducts(ctx, &store.FindCatalogProduct{Category: "masks"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)

	bySkin, err := d.SearchCatalogProducts(ctx, &store.FindCatalogProduct{SkinType: "dry"})
	require.NoError(t, err)
	require.Len(t, bySkin, 1)

	limited, err := d.SearchCatalogProducts(ctx, &store.FindCatalogProduct{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	slug := "clay-mask"
	bySlug, err := d.SearchCatalogProducts(ctx, &store.FindCatalogProduct{Slug: &slug})
	require.NoError(t, err)
	require.Len(t, bySlug, 1)
	assert.Equal(t, "p2", bySlug[0].ID)
}

func TestCatalogRoutine(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	require.NoError(t, d.UpsertCatalogRoutine(ctx, &store.CatalogRoutine{ID: "r1", SkinConcern: "Acne", Title: "Clear", Document: `{"steps":[]}`}))

	concern := "acne"
	got, err := d.FindCatalogRoutine(ctx, &store.FindCatalogRoutine{SkinConcern: &concern})
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	other := "dullness"
	_, err = d.FindCatalogRoutine(ctx, &store.FindCatalogRoutine{SkinConcern: &other})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCartItemAccumulates(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	item, err := d.UpsertCartItem(ctx, &store.CartItem{UserID: "u1", ProductID: "p1", SizeID: "s1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)

	item, err = d.UpsertCartItem(ctx, &store.CartItem{UserID: "u1", ProductID: "p1", SizeID: "s1", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)

	list, err := d.ListCartItems(ctx, &store.FindCartItem{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Quantity)
}

func TestUserPreferencesUpsert(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	_, err := d.GetUserPreferences(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = d.UpsertUserPreferences(ctx, &store.UpsertUserPreferences{UserID: "u1", Preferences: `{"skinType":"dry"}`})
	require.NoError(t, err)
	p, err := d.UpsertUserPreferences(ctx, &store.UpsertUserPreferences{UserID: "u1", Preferences: `{"skinType":"oily"}`})
	require.NoError(t, err)
	assert.Equal(t, `{"skinType":"oily"}`, p.Preferences)
}
