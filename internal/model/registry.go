package model

// All lists every table managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&ChatTranscript{},
	}
}
