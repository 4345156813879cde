package dao

import (
	"context"
	"log/slog"

	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// Items accesses pharmacopoeia entries.
type Items struct {
	*Store
}

func NewItems(pool *db.Pool, log *slog.Logger) *Items {
	return &Items{NewStore(pool, log, types.TableItems, types.IDItems, types.ItemColumns)}
}

// FindByVolume lists entries of one pharmacopoeia volume ordered by
// document id.
func (d *Items) FindByVolume(ctx context.Context, volume int, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "doc_id ASC"
	}
	return d.FindBy(ctx, types.Record{"volume": volume}, opts)
}

// FindByCategory lists entries of one category.
func (d *Items) FindByCategory(ctx context.Context, category string, opts types.ListOptions) ([]types.Record, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "name_cn ASC"
	}
	return d.FindBy(ctx, types.Record{"category": category}, opts)
}

// SearchByName matches the Chinese, pinyin, or English name by
// substring.
func (d *Items) SearchByName(ctx context.Context, keyword string, limit, offset int) ([]types.Record, error) {
	query := `
		SELECT * FROM pharmacopoeia_items
		WHERE name_cn LIKE $1 OR name_pinyin LIKE $1 OR name_en LIKE $1
		ORDER BY volume, doc_id
		LIMIT $2 OFFSET $3`
	recs, _, err := d.ExecQuery(ctx, query, "%"+keyword+"%", limit, offset)
	return recs, err
}

// GetByVolumeAndDoc fetches an entry by its natural key.
func (d *Items) GetByVolumeAndDoc(ctx context.Context, volume int, docID int64) (types.Record, error) {
	recs, err := d.FindBy(ctx, types.Record{"volume": volume, "doc_id": docID}, types.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, types.ErrNotFound
	}
	return recs[0], nil
}
