package store

// UserPreferences holds the skin profile a user shared with the assistant,
// stored as a JSON object.
type UserPreferences struct {
	UserID      string
	Preferences string
	CreatedTs   int64
	UpdatedTs   int64
}

// UpsertUserPreferences specifies the data for upserting user preferences.
type UpsertUserPreferences struct {
	UserID      string
	Preferences string
}
