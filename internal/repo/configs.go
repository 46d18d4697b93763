package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hireline/internal/config"
)

// UpsertPlatformConfig stores the platform config JSON in the DB.
func (r Repo) UpsertPlatformConfig(ctx context.Context, tx *sql.Tx, platformID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Platform.ID = platformID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO platform_configs(platform_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(platform_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, platformID, string(payload), now, now)
	return err
}

// GetPlatformConfig loads the stored platform config.
func (r Repo) GetPlatformConfig(ctx context.Context, platformID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM platform_configs WHERE platform_id=?`, platformID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Platform.ID == "" {
		cfg.Platform.ID = platformID
	}
	return &cfg, cfg.Validate()
}
