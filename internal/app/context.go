package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"hireline/internal/config"
	"hireline/internal/repo"
)

const defaultPlatformID = "hireline"

// ResolvePlatformAndConfig picks the active platform and ensures a config
// exists, seeding defaults when the workspace is fresh. A hireline.yml in the
// workspace wins over the DB copy so local edits take effect without an
// explicit import.
func ResolvePlatformAndConfig(ctx context.Context, workspace, platformOverride string, r repo.Repo) (string, *config.Config, error) {
	if _, err := os.Stat(config.Path(workspace)); err == nil {
		cfg, err := config.Load(workspace)
		if err != nil {
			return "", nil, err
		}
		platformID := platformOverride
		if platformID == "" {
			platformID = cfg.Platform.ID
		}
		cfg.Platform.ID = platformID
		if err := r.UpsertPlatformConfig(ctx, nil, platformID, cfg); err != nil {
			return "", nil, fmt.Errorf("sync platform config: %w", err)
		}
		return platformID, cfg, nil
	}

	platformID := platformOverride
	if platformID == "" {
		platformID = defaultPlatformID
	}
	cfg, err := r.GetPlatformConfig(ctx, platformID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		cfg = config.Default(platformID)
		if err := r.UpsertPlatformConfig(ctx, nil, platformID, cfg); err != nil {
			return "", nil, fmt.Errorf("seed platform config: %w", err)
		}
	}
	return platformID, cfg, nil
}
