// Package settings provides repository implementations for commission configuration.
// This file implements the Repository, which handles key/value settings stored in config.db.
// Settings hold the bonus rates; the rank ladder lives next to them in the ranks table.
package settings

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles settings database operations.
// Settings are stored as strings and converted when retrieved; decimals are
// parsed with shopspring/decimal so configured rates keep their exact value.
//
// Database: config.db (settings table)
type Repository struct {
	db  *sql.DB        // config.db - settings table
	log zerolog.Logger // Structured logger
}

// NewRepository creates a new settings repository.
//
// Parameters:
//   - db: Database connection to config.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get retrieves a setting value by key.
// Returns nil if the setting doesn't exist (not an error).
//
// Parameters:
//   - key: Setting key (e.g., "instant_rate_investor")
//
// Returns:
//   - *string: Setting value if found, nil if not found
//   - error: Error if query fails
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set sets a setting value.
// Uses an upsert so both insert and update happen in a single statement.
// The description is optional and documents the setting's purpose.
//
// Parameters:
//   - key: Setting key
//   - value: Setting value (stored as string)
//   - description: Optional description of the setting
//
// Returns:
//   - error: Error if database operation fails
func (r *Repository) Set(key string, value string, description *string) error {
	now := time.Now().Unix()

	if description != nil {
		_, err := r.db.Exec(`
			INSERT INTO settings (key, value, description, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				description = excluded.description,
				updated_at = excluded.updated_at
		`, key, value, *description, now)
		if err != nil {
			return fmt.Errorf("failed to set setting %s: %w", key, err)
		}
		return nil
	}

	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetAll retrieves all stored settings merged over SettingDefaults.
//
// Returns:
//   - map[string]string: Map of setting keys to values
//   - error: Error if query fails
func (r *Repository) GetAll() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to get all settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string, len(SettingDefaults))
	for key, value := range SettingDefaults {
		result[key] = value
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan setting row")
			continue
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return result, nil
}

// GetDecimal retrieves a setting value as a decimal.
// Falls back to SettingDefaults when the key is unset; unparsable stored
// values are logged and also fall back to the default.
//
// Parameters:
//   - key: Setting key
//
// Returns:
//   - decimal.Decimal: Setting value
//   - error: Error if query fails or the key has no default
func (r *Repository) GetDecimal(key string) (decimal.Decimal, error) {
	value, err := r.Get(key)
	if err != nil {
		return decimal.Zero, err
	}

	if value != nil {
		d, err := decimal.NewFromString(*value)
		if err == nil {
			return d, nil
		}
		r.log.Warn().
			Err(err).
			Str("key", key).
			Str("value", *value).
			Msg("Failed to parse decimal setting, using default")
	}

	def, ok := SettingDefaults[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("setting %s: %w", key, domain.ErrNotFound)
	}
	return decimal.NewFromString(def)
}

// SetDecimal validates and stores a non-negative decimal setting
func (r *Repository) SetDecimal(key string, value decimal.Decimal) error {
	if value.IsNegative() {
		return domain.Invalid(key, domain.ErrInvalidAmount)
	}
	return r.Set(key, value.String(), nil)
}

// Delete deletes a setting, restoring its default.
// This operation is idempotent - it does not error if the setting doesn't exist.
//
// Parameters:
//   - key: Setting key to delete
//
// Returns:
//   - error: Error if database operation fails
func (r *Repository) Delete(key string) error {
	_, err := r.db.Exec("DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
