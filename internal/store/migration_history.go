package store

// MigrationHistory is one applied schema version.
type MigrationHistory struct {
	Version   string
	CreatedTs int64
}
