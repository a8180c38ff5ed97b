// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// incrementSQL upserts the counter and increments it in one statement.
// Both PostgreSQL and SQLite (>= 3.35) accept this form; gorm rewrites the
// placeholders for the active dialect.
const incrementSQL = `
	INSERT INTO sequence_counters (name, last_value, created_at, updated_at)
	VALUES (?, 1, ?, ?)
	ON CONFLICT (name) DO UPDATE
	SET last_value = sequence_counters.last_value + 1,
		updated_at = excluded.updated_at
	RETURNING last_value`

// SequenceCounterRepositoryImpl implements SequenceCounterRepository on a relational database
type SequenceCounterRepositoryImpl struct {
	*BaseRepository[models.SequenceCounter, models.SequenceCounterFilter]
}

// NewSequenceCounterRepository creates a new gorm backed counter repository
func NewSequenceCounterRepository(db *gorm.DB) SequenceCounterRepository {
	return &SequenceCounterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SequenceCounter, models.SequenceCounterFilter](db),
	}
}

// Increment atomically creates-or-increments the named counter
func (r *SequenceCounterRepositoryImpl) Increment(ctx context.Context, name string) (int64, error) {
	db := r.getDB(ctx)

	now := utils.UTCNow()
	var values []int64
	result := db.Raw(incrementSQL, name, now, now).Scan(&values)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to increment sequence %q: %w", name, result.Error)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("failed to increment sequence %q: %w", name, ErrNoSequenceValue)
	}

	return values[0], nil
}

// ByName retrieves a counter by its name
func (r *SequenceCounterRepositoryImpl) ByName(ctx context.Context, name string) (*models.SequenceCounter, error) {
	db := r.getDB(ctx)

	var counter models.SequenceCounter
	err := db.Where("name = ?", name).Take(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find sequence %q: %w", name, err)
	}

	return &counter, nil
}

// ByFilter retrieves counters based on filter criteria
func (r *SequenceCounterRepositoryImpl) ByFilter(ctx context.Context, filter models.SequenceCounterFilter, orderBy string, limit, offset int) ([]*models.SequenceCounter, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SequenceCounter{}), filter)

	if orderBy == "" {
		orderBy = "name ASC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var counters []*models.SequenceCounter
	if err := query.Find(&counters).Error; err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}
	return counters, nil
}

// SaveIfAbsent inserts the counter unless the name is already taken
func (r *SequenceCounterRepositoryImpl) SaveIfAbsent(ctx context.Context, counter *models.SequenceCounter) (bool, error) {
	if counter == nil {
		return false, errors.New("sequence counter payload is nil")
	}
	db := r.getDB(ctx)

	now := utils.UTCNow()
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = now
	}
	if counter.UpdatedAt.IsZero() {
		counter.UpdatedAt = now
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(counter)
	if result.Error != nil {
		return false, fmt.Errorf("failed to save sequence %q: %w", counter.Name, result.Error)
	}

	return result.RowsAffected == 1, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SequenceCounterRepositoryImpl) applyFilter(query *gorm.DB, filter models.SequenceCounterFilter) *gorm.DB {
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.NamePrefix != nil {
		query = query.Where("name LIKE ? ESCAPE '\\'", escapeLike(*filter.NamePrefix)+"%")
	}
	if filter.UpdatedAfter != nil {
		query = query.Where("updated_at > ?", *filter.UpdatedAfter)
	}
	if filter.UpdatedBefore != nil {
		query = query.Where("updated_at < ?", *filter.UpdatedBefore)
	}
	return query
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '%' || ch == '_' || ch == '\\' {
			out = append(out, '\\')
		}
		out = append(out, ch)
	}
	return string(out)
}
