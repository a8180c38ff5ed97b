package testing

import (
	"fmt"

	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCounter inserts a counter whose next allocation returns value+1
func (tf *TestFixtures) CreateTestCounter(name string, value int64) (*models.SequenceCounter, error) {
	now := utils.UTCNow()
	counter := &models.SequenceCounter{
		Name:      name,
		LastValue: value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tf.DB.DB.Create(counter).Error; err != nil {
		return nil, fmt.Errorf("failed to create test counter %s: %w", name, err)
	}
	return counter, nil
}

// CounterValue reads the persisted value straight from the table, bypassing
// repositories. ok is false when the counter does not exist.
func (tf *TestFixtures) CounterValue(name string) (value int64, ok bool, err error) {
	var rows []models.SequenceCounter
	if err := tf.DB.DB.Where("name = ?", name).Limit(1).Find(&rows).Error; err != nil {
		return 0, false, fmt.Errorf("failed to read test counter %s: %w", name, err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].LastValue, true, nil
}
