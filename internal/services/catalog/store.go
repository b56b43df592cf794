package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
)

var (
	ErrItemNotFound = errors.New("catalog: item not found")
	// ErrConflict: the row changed between read and conditional write.
	ErrConflict = errors.New("catalog: item changed concurrently")
)

const markMissingChunk = 500

// likeEscaper makes % and _ in a query match literally, with '!' as the ESCAPE char
// (a backslash literal is not portable across postgres and mysql).
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ItemRef is the slice of a row the missing-mark pass needs.
type ItemRef struct {
	RemoteID       int64
	ParentRemoteID *int64
}

type ListFilter struct {
	View              ViewKey
	Query             string
	Missing           *bool
	Page              int
	Limit             int
	LowStockThreshold int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}
	f.Query = strings.TrimSpace(f.Query)
}

type ListPage struct {
	Items []models.CatalogItem
	Total int64
}

type Store interface {
	UpsertItem(ctx context.Context, item *models.CatalogItem) error
	ActiveRefs(ctx context.Context) ([]ItemRef, error)
	MarkMissing(ctx context.Context, remoteIDs []int64) (int64, error)
	MarkMissingOne(ctx context.Context, remoteID int64) (int64, error)
	FindByRemoteID(ctx context.Context, remoteID int64) (*models.CatalogItem, error)
	UpdateFields(ctx context.Context, remoteID int64, fields map[string]any) (*models.CatalogItem, error)
	UpdateFieldsIf(ctx context.Context, remoteID int64, expect, fields map[string]any) (*models.CatalogItem, error)
	List(ctx context.Context, f ListFilter) (*ListPage, error)
	DeleteByRemoteID(ctx context.Context, remoteID int64) (int64, error)

	CreateRun(ctx context.Context, run *models.SyncRun) error
	FinishRun(ctx context.Context, run *models.SyncRun) error
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// UpsertItem inserts or rewrites the remote-sourced columns of the row keyed by remote_id.
// Purchase state and local notes are never part of the update set.
func (s *GormStore) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	assignments := clause.AssignmentColumns(models.RemoteColumns)
	assignments = append(assignments, clause.Assignment{
		Column: clause.Column{Name: "is_missing_from_woo"},
		Value:  false,
	})

	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoUpdates: assignments,
	}).Create(item).Error
}

func (s *GormStore) ActiveRefs(ctx context.Context) ([]ItemRef, error) {
	var refs []ItemRef
	err := s.DB.WithContext(ctx).
		Model(&models.CatalogItem{}).
		Select("remote_id", "parent_remote_id").
		Where("is_missing_from_woo = ?", false).
		Find(&refs).Error
	return refs, err
}

func (s *GormStore) MarkMissing(ctx context.Context, remoteIDs []int64) (int64, error) {
	var total int64
	now := time.Now()
	for start := 0; start < len(remoteIDs); start += markMissingChunk {
		end := start + markMissingChunk
		if end > len(remoteIDs) {
			end = len(remoteIDs)
		}
		res := s.DB.WithContext(ctx).
			Model(&models.CatalogItem{}).
			Where("remote_id IN ? AND is_missing_from_woo = ?", remoteIDs[start:end], false).
			Updates(map[string]any{"is_missing_from_woo": true, "updated_at": now})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (s *GormStore) MarkMissingOne(ctx context.Context, remoteID int64) (int64, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.CatalogItem{}).
		Where("remote_id = ?", remoteID).
		Updates(map[string]any{"is_missing_from_woo": true, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (s *GormStore) FindByRemoteID(ctx context.Context, remoteID int64) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := s.DB.WithContext(ctx).Where("remote_id = ?", remoteID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateFields is a single-row update keyed by remote id, returning the fresh row.
func (s *GormStore) UpdateFields(ctx context.Context, remoteID int64, fields map[string]any) (*models.CatalogItem, error) {
	return s.UpdateFieldsIf(ctx, remoteID, nil, fields)
}

// UpdateFieldsIf updates the row only while every column in expect still holds its value.
// A row that exists but no longer matches gives ErrConflict.
func (s *GormStore) UpdateFieldsIf(ctx context.Context, remoteID int64, expect, fields map[string]any) (*models.CatalogItem, error) {
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now()
	}
	q := s.DB.WithContext(ctx).
		Model(&models.CatalogItem{}).
		Where("remote_id = ?", remoteID)
	for col, v := range expect {
		q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: v})
	}

	res := q.Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if len(expect) == 0 {
			return nil, ErrItemNotFound
		}
		if _, err := s.FindByRemoteID(ctx, remoteID); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return s.FindByRemoteID(ctx, remoteID)
}

func (s *GormStore) List(ctx context.Context, f ListFilter) (*ListPage, error) {
	f.normalize()

	base := func() *gorm.DB {
		q := s.DB.WithContext(ctx).Model(&models.CatalogItem{})
		switch f.View {
		case ViewLowStock:
			q = q.Where("purchased = ? AND stock_quantity <= ? AND kind <> ?",
				false, f.LowStockThreshold, models.KindVariable)
		case ViewPurchased:
			q = q.Where("purchased = ?", true)
		}
		if f.Missing != nil {
			q = q.Where("is_missing_from_woo = ?", *f.Missing)
		}
		if f.Query != "" {
			like := "%" + likeEscaper.Replace(strings.ToLower(f.Query)) + "%"
			q = q.Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(sku) LIKE ? ESCAPE '!' OR LOWER(barcode) LIKE ? ESCAPE '!'",
				like, like, like)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	order := "updated_at DESC, id DESC"
	switch f.View {
	case ViewLowStock:
		order = "stock_quantity ASC, name ASC"
	case ViewPurchased:
		order = "purchased_at DESC, id DESC"
	}

	items := make([]models.CatalogItem, 0, f.Limit)
	err := base().
		Order(order).
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return &ListPage{Items: items, Total: total}, nil
}

// DeleteByRemoteID removes the row and, for a variable product, its variations.
func (s *GormStore) DeleteByRemoteID(ctx context.Context, remoteID int64) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("remote_id = ? OR parent_remote_id = ?", remoteID, remoteID).
		Delete(&models.CatalogItem{})
	return res.RowsAffected, res.Error
}

func (s *GormStore) CreateRun(ctx context.Context, run *models.SyncRun) error {
	return s.DB.WithContext(ctx).Create(run).Error
}

func (s *GormStore) FinishRun(ctx context.Context, run *models.SyncRun) error {
	return s.DB.WithContext(ctx).Save(run).Error
}

func (s *GormStore) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	runs := make([]models.SyncRun, 0, limit)
	err := s.DB.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
