package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/utils"
)

// MemorySequenceCounterRepository keeps counters in process memory.
// It is atomic within one process only and loses state on restart; it backs
// tests and local development.
type MemorySequenceCounterRepository struct {
	mu       sync.Mutex
	counters map[string]*models.SequenceCounter
}

// NewMemorySequenceCounterRepository creates an empty in-memory counter store
func NewMemorySequenceCounterRepository() *MemorySequenceCounterRepository {
	return &MemorySequenceCounterRepository{
		counters: make(map[string]*models.SequenceCounter),
	}
}

func (r *MemorySequenceCounterRepository) Increment(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := utils.UTCNow()
	counter, ok := r.counters[name]
	if !ok {
		counter = &models.SequenceCounter{Name: name, CreatedAt: now}
		r.counters[name] = counter
	}
	counter.LastValue++
	counter.UpdatedAt = now

	return counter.LastValue, nil
}

func (r *MemorySequenceCounterRepository) ByName(ctx context.Context, name string) (*models.SequenceCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	counter, ok := r.counters[name]
	if !ok {
		return nil, nil
	}
	cp := *counter
	return &cp, nil
}

// ByFilter returns matching counters ordered by name; orderBy is ignored.
func (r *MemorySequenceCounterRepository) ByFilter(ctx context.Context, filter models.SequenceCounterFilter, _ string, limit, offset int) ([]*models.SequenceCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	rows := make([]*models.SequenceCounter, 0, len(r.counters))
	for _, counter := range r.counters {
		if matchesCounterFilter(counter, filter) {
			cp := *counter
			rows = append(rows, &cp)
		}
	}
	r.mu.Unlock()

	return pageCounters(rows, limit, offset), nil
}

func (r *MemorySequenceCounterRepository) SaveIfAbsent(ctx context.Context, counter *models.SequenceCounter) (bool, error) {
	if counter == nil {
		return false, errors.New("sequence counter payload is nil")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.counters[counter.Name]; ok {
		return false, nil
	}

	now := utils.UTCNow()
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = now
	}
	if counter.UpdatedAt.IsZero() {
		counter.UpdatedAt = now
	}
	cp := *counter
	r.counters[counter.Name] = &cp
	return true, nil
}

// matchesCounterFilter evaluates a filter for stores without a query language
func matchesCounterFilter(counter *models.SequenceCounter, filter models.SequenceCounterFilter) bool {
	if filter.Name != nil && counter.Name != *filter.Name {
		return false
	}
	if filter.NamePrefix != nil && !strings.HasPrefix(counter.Name, *filter.NamePrefix) {
		return false
	}
	if filter.UpdatedAfter != nil && !counter.UpdatedAt.After(*filter.UpdatedAfter) {
		return false
	}
	if filter.UpdatedBefore != nil && !counter.UpdatedAt.Before(*filter.UpdatedBefore) {
		return false
	}
	return true
}

// pageCounters sorts by name and applies offset/limit
func pageCounters(rows []*models.SequenceCounter, limit, offset int) []*models.SequenceCounter {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	if offset > 0 {
		if offset >= len(rows) {
			return []*models.SequenceCounter{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
