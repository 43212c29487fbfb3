package store

// SystemSetting is one name/value row of instance-wide state.
type SystemSetting struct {
	Name  string
	Value string
}

// SystemSettingSchemaVersion records the binary version that last migrated
// the database.
const SystemSettingSchemaVersion = "schema_version"
