package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/utils"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
)

// counterDoc is the mongo representation of a counter
type counterDoc struct {
	Name      string    `bson:"_id"`
	Value     int64     `bson:"value"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d counterDoc) toModel() *models.SequenceCounter {
	return &models.SequenceCounter{
		Name:      d.Name,
		LastValue: d.Value,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// MongoSequenceCounterRepository allocates with findAndModify ($inc, upsert,
// new) keyed by _id, which mongo applies atomically to a single document.
type MongoSequenceCounterRepository struct {
	session    *mgo.Session
	database   string
	collection string
}

// NewMongoSequenceCounterRepository creates a mongo backed counter repository.
// The session is copied per operation and never closed by the repository.
func NewMongoSequenceCounterRepository(session *mgo.Session, database, collection string) SequenceCounterRepository {
	return &MongoSequenceCounterRepository{
		session:    session,
		database:   database,
		collection: collection,
	}
}

// withCollection runs fn on a session copy bounded by the context deadline
func (r *MongoSequenceCounterRepository) withCollection(ctx context.Context, fn func(*mgo.Collection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.session.Copy()
	defer s.Close()

	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return context.DeadlineExceeded
		}
		s.SetSocketTimeout(remaining)
		s.SetSyncTimeout(remaining)
	}

	return fn(s.DB(r.database).C(r.collection))
}

func (r *MongoSequenceCounterRepository) Increment(ctx context.Context, name string) (int64, error) {
	var doc counterDoc
	err := r.withCollection(ctx, func(c *mgo.Collection) error {
		apply := func() error {
			now := utils.UTCNow()
			_, err := c.FindId(name).Apply(mgo.Change{
				Update: bson.M{
					"$inc":         bson.M{"value": int64(1)},
					"$set":         bson.M{"updated_at": now},
					"$setOnInsert": bson.M{"created_at": now},
				},
				Upsert:    true,
				ReturnNew: true,
			}, &doc)
			return err
		}

		err := apply()
		// Two first-time upserts on the same _id can race on the unique
		// index; the loser's write never happened, so it is re-issued
		// against the document the winner created.
		if mgo.IsDup(err) {
			err = apply()
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %q: %w", name, err)
	}
	if doc.Value <= 0 {
		return 0, fmt.Errorf("failed to increment sequence %q: %w", name, ErrNoSequenceValue)
	}

	return doc.Value, nil
}

func (r *MongoSequenceCounterRepository) ByName(ctx context.Context, name string) (*models.SequenceCounter, error) {
	var doc counterDoc
	err := r.withCollection(ctx, func(c *mgo.Collection) error {
		return c.FindId(name).One(&doc)
	})
	if err != nil {
		if errors.Is(err, mgo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find sequence %q: %w", name, err)
	}
	return doc.toModel(), nil
}

// ByFilter returns matching counters ordered by name; orderBy is ignored.
func (r *MongoSequenceCounterRepository) ByFilter(ctx context.Context, filter models.SequenceCounterFilter, _ string, limit, offset int) ([]*models.SequenceCounter, error) {
	query := bson.M{}
	if filter.Name != nil {
		query["_id"] = *filter.Name
	} else if filter.NamePrefix != nil {
		query["_id"] = bson.RegEx{Pattern: "^" + regexp.QuoteMeta(*filter.NamePrefix)}
	}
	updated := bson.M{}
	if filter.UpdatedAfter != nil {
		updated["$gt"] = *filter.UpdatedAfter
	}
	if filter.UpdatedBefore != nil {
		updated["$lt"] = *filter.UpdatedBefore
	}
	if len(updated) > 0 {
		query["updated_at"] = updated
	}

	var docs []counterDoc
	err := r.withCollection(ctx, func(c *mgo.Collection) error {
		q := c.Find(query).Sort("_id")
		if offset > 0 {
			q = q.Skip(offset)
		}
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.All(&docs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}

	rows := make([]*models.SequenceCounter, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, d.toModel())
	}
	return rows, nil
}

func (r *MongoSequenceCounterRepository) SaveIfAbsent(ctx context.Context, counter *models.SequenceCounter) (bool, error) {
	if counter == nil {
		return false, errors.New("sequence counter payload is nil")
	}

	now := utils.UTCNow()
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = now
	}
	if counter.UpdatedAt.IsZero() {
		counter.UpdatedAt = now
	}

	err := r.withCollection(ctx, func(c *mgo.Collection) error {
		return c.Insert(counterDoc{
			Name:      counter.Name,
			Value:     counter.LastValue,
			CreatedAt: counter.CreatedAt,
			UpdatedAt: counter.UpdatedAt,
		})
	})
	if err != nil {
		if mgo.IsDup(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to save sequence %q: %w", counter.Name, err)
	}
	return true, nil
}
