package businessflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/order-sequencer/logger"
	"github.com/amirphl/order-sequencer/models"
	"github.com/amirphl/order-sequencer/repository"
	"github.com/amirphl/order-sequencer/utils"
	"github.com/go-playground/validator/v10"
)

// SequenceFlow hands out strictly increasing integers per named counter,
// never reusing one, and exposes read and import operations over the same
// counters.
type SequenceFlow interface {
	// NextValue atomically creates-or-increments the counter and returns
	// the post-increment value. A failed call never consumes a number.
	NextValue(ctx context.Context, name string) (int64, error)
	CurrentValue(ctx context.Context, name string) (int64, error)
	ListCounters(ctx context.Context) ([]models.SequenceCounter, error)
	// SeedCounter creates a counter whose next allocation returns value+1
	SeedCounter(ctx context.Context, name string, value int64) (*models.SequenceCounter, error)
}

// SequenceFlowOptions tunes a SequenceFlowImpl
type SequenceFlowOptions struct {
	// OperationTimeout bounds a store round trip when ctx has no deadline
	OperationTimeout time.Duration
	// AllowedCounters restricts counter names when non-empty
	AllowedCounters []string
}

// SequenceFlowImpl implements SequenceFlow.
type SequenceFlowImpl struct {
	counterRepo repository.SequenceCounterRepository
	validator   *validator.Validate
	logger      *logger.Logger
	opts        SequenceFlowOptions
}

// NewSequenceFlow creates a new sequence flow.
func NewSequenceFlow(
	counterRepo repository.SequenceCounterRepository,
	log *logger.Logger,
	opts SequenceFlowOptions,
) SequenceFlow {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = utils.DefaultSequenceOperationTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SequenceFlowImpl{
		counterRepo: counterRepo,
		validator:   utils.NewValidator(),
		logger:      log,
		opts:        opts,
	}
}

func (f *SequenceFlowImpl) NextValue(ctx context.Context, name string) (int64, error) {
	if err := f.validateName(name); err != nil {
		// Rejected names share one label value to bound cardinality
		sequenceAllocationsTotal.WithLabelValues("invalid", resultInvalidName).Inc()
		return 0, err
	}
	// The registry and the memory store retain the name past this call
	name = strings.Clone(name)

	ctx, cancel := f.withOperationTimeout(ctx)
	defer cancel()

	start := time.Now()
	value, err := f.counterRepo.Increment(ctx, name)
	sequenceAllocationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	log := f.logger.With(append([]any{"counter", name}, clientMetadataFrom(ctx).logFields()...)...)
	if err != nil {
		be := classifyStorageError(err, "failed to allocate sequence value for %q", name)
		if be.Code == CodeAllocationConflict {
			sequenceAllocationsTotal.WithLabelValues(name, resultConflict).Inc()
		} else {
			sequenceAllocationsTotal.WithLabelValues(name, resultUnavailable).Inc()
		}
		log.Errorw("sequence allocation failed", "code", be.Code, "error", err)
		return 0, be
	}

	sequenceAllocationsTotal.WithLabelValues(name, resultSuccess).Inc()
	log.Debugw("sequence value allocated", "value", value)
	return value, nil
}

func (f *SequenceFlowImpl) CurrentValue(ctx context.Context, name string) (int64, error) {
	if err := f.validateName(name); err != nil {
		return 0, err
	}

	ctx, cancel := f.withOperationTimeout(ctx)
	defer cancel()

	counter, err := f.counterRepo.ByName(ctx, name)
	if err != nil {
		return 0, classifyStorageError(err, "failed to read counter %q", name)
	}
	if counter == nil {
		return 0, NewBusinessErrorf(CodeCounterNotFound, "counter %q not found", ErrCounterNotFound, name)
	}
	return counter.LastValue, nil
}

func (f *SequenceFlowImpl) ListCounters(ctx context.Context) ([]models.SequenceCounter, error) {
	ctx, cancel := f.withOperationTimeout(ctx)
	defer cancel()

	rows, err := f.counterRepo.ByFilter(ctx, models.SequenceCounterFilter{}, "name ASC", 0, 0)
	if err != nil {
		return nil, classifyStorageError(err, "failed to list counters")
	}

	counters := make([]models.SequenceCounter, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			counters = append(counters, *row)
		}
	}
	return counters, nil
}

func (f *SequenceFlowImpl) SeedCounter(ctx context.Context, name string, value int64) (*models.SequenceCounter, error) {
	if err := f.validateName(name); err != nil {
		return nil, err
	}
	if value < 0 {
		return nil, NewBusinessErrorf(CodeInvalidSeedValue, "invalid seed value %d", ErrInvalidSeedValue, value)
	}
	name = strings.Clone(name)

	ctx, cancel := f.withOperationTimeout(ctx)
	defer cancel()

	counter := &models.SequenceCounter{Name: name, LastValue: value}
	created, err := f.counterRepo.SaveIfAbsent(ctx, counter)
	if err != nil {
		return nil, classifyStorageError(err, "failed to seed counter %q", name)
	}
	if !created {
		return nil, NewBusinessErrorf(CodeCounterAlreadyExists, "counter %q already exists", ErrCounterAlreadyExists, name)
	}

	f.logger.With(clientMetadataFrom(ctx).logFields()...).
		Infow("sequence counter seeded", "counter", name, "value", value)
	return counter, nil
}

func (f *SequenceFlowImpl) validateName(name string) error {
	if err := f.validator.Var(name, "required,"+utils.CounterNameTag); err != nil {
		return NewBusinessErrorf(CodeInvalidCounterName, "invalid counter name %q", ErrInvalidCounterName, name)
	}
	if len(f.opts.AllowedCounters) > 0 && !slices.Contains(f.opts.AllowedCounters, name) {
		return NewBusinessErrorf(CodeInvalidCounterName, "counter %q is not allowed", ErrInvalidCounterName, name)
	}
	return nil
}

func (f *SequenceFlowImpl) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.opts.OperationTimeout)
}

// classifyStorageError maps a repository failure onto the allocation error
// taxonomy. Cancellation and deadline errors land in StorageUnavailable: the
// caller cannot know whether the store committed.
func classifyStorageError(err error, message string, args ...any) *BusinessError {
	if errors.Is(err, repository.ErrNoSequenceValue) {
		return NewBusinessErrorf(CodeAllocationConflict, message, fmt.Errorf("%w: %w", ErrAllocationConflict, err), args...)
	}
	return NewBusinessErrorf(CodeStorageUnavailable, message, fmt.Errorf("%w: %w", ErrStorageUnavailable, err), args...)
}

type clientMetadataKey struct{}

// WithClientMetadata attaches caller metadata to ctx for allocation logs
func WithClientMetadata(ctx context.Context, metadata *ClientMetadata) context.Context {
	return context.WithValue(ctx, clientMetadataKey{}, metadata)
}

func clientMetadataFrom(ctx context.Context) *ClientMetadata {
	metadata, _ := ctx.Value(clientMetadataKey{}).(*ClientMetadata)
	return metadata
}
