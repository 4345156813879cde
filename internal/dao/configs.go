package dao

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// Configs accesses system configuration entries keyed by name.
type Configs struct {
	*Store
}

func NewConfigs(pool *db.Pool, log *slog.Logger) *Configs {
	return &Configs{NewStore(pool, log, types.TableSystemConfigs, types.IDSystemConfigs, types.SystemConfigColumns)}
}

// Set upserts a config value, refusing to overwrite entries marked
// non-editable.
func (d *Configs) Set(ctx context.Context, key, value, updatedBy string) (bool, error) {
	query := `
		INSERT INTO system_configs (config_key, config_value, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (config_key) DO UPDATE
		SET config_value = EXCLUDED.config_value,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = NOW()
		WHERE system_configs.is_editable`
	_, affected, err := d.ExecQuery(ctx, query, key, value, updatedBy)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Value fetches a config entry and converts the stored string
// according to its declared config_type (string, int, float, bool).
func (d *Configs) Value(ctx context.Context, key string) (any, error) {
	rec, err := d.GetByID(ctx, key)
	if err != nil {
		return nil, err
	}
	raw, _ := types.AsString(rec["config_value"])
	typ, _ := types.AsString(rec["config_type"])
	switch typ {
	case "int":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", key, err)
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", key, err)
		}
		return f, nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", key, err)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// ByCategory lists config entries in one category.
func (d *Configs) ByCategory(ctx context.Context, category string) ([]types.Record, error) {
	return d.FindBy(ctx, types.Record{"category": category}, types.ListOptions{OrderBy: "config_key ASC"})
}
