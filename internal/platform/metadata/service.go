package metadata

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Keys ---

const (
	// LastMonthlyRebuildAtKey records when the monthly aggregates were last
	// rebuilt from scratch, in RFC3339.
	LastMonthlyRebuildAtKey = "last_monthly_rebuild_at"
)

// --- Generic Accessors ---

// GetValue retrieves a value for a given key from the metadata table.
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// If the key doesn't exist, return an empty string, which is a valid default.
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue creates or updates a value for a given key.
func SetValue(db *gorm.DB, key, value string) error {
	// Use GORM's OnConflict clause for an efficient and atomic "upsert" operation.
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
}

// --- Specific Helpers ---

// MarkMonthlyRebuild stores the current time as the last full rebuild moment.
func MarkMonthlyRebuild(db *gorm.DB) error {
	return SetValue(db, LastMonthlyRebuildAtKey, time.Now().UTC().Format(time.RFC3339))
}

// GetLastMonthlyRebuildAt returns the last full rebuild moment, or the zero
// time if no rebuild has been recorded yet.
func GetLastMonthlyRebuildAt(db *gorm.DB) (time.Time, error) {
	valueStr, err := GetValue(db, LastMonthlyRebuildAtKey)
	if err != nil || valueStr == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, valueStr)
}
