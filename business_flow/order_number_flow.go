package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/order-sequencer/app/dto"
	"github.com/amirphl/order-sequencer/logger"
	"github.com/amirphl/order-sequencer/utils"
)

// OrderNumberFlow mints human-facing order numbers for order creation.
type OrderNumberFlow interface {
	NextOrderNumber(ctx context.Context) (*dto.OrderNumberResponse, error)
}

// OrderNumberFlowOptions configures the counter and display format
type OrderNumberFlowOptions struct {
	Counter string
	Prefix  string
	Padding int
}

// OrderNumberFlowImpl implements OrderNumberFlow.
type OrderNumberFlowImpl struct {
	sequenceFlow SequenceFlow
	logger       *logger.Logger
	opts         OrderNumberFlowOptions
}

// NewOrderNumberFlow creates a new order number flow.
func NewOrderNumberFlow(sequenceFlow SequenceFlow, log *logger.Logger, opts OrderNumberFlowOptions) OrderNumberFlow {
	if opts.Counter == "" {
		opts.Counter = utils.OrderNumberCounter
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &OrderNumberFlowImpl{
		sequenceFlow: sequenceFlow,
		logger:       log,
		opts:         opts,
	}
}

// NextOrderNumber allocates exactly one value from the order counter. On
// failure the error is returned as is and no number is produced.
func (f *OrderNumberFlowImpl) NextOrderNumber(ctx context.Context) (*dto.OrderNumberResponse, error) {
	number, err := f.sequenceFlow.NextValue(ctx, f.opts.Counter)
	if err != nil {
		f.logger.Warnw("order number allocation aborted", "counter", f.opts.Counter, "error", err)
		return nil, err
	}

	return &dto.OrderNumberResponse{
		Number:  number,
		Display: FormatOrderNumber(f.opts.Prefix, f.opts.Padding, number),
	}, nil
}

// FormatOrderNumber renders number zero-padded to width after prefix
func FormatOrderNumber(prefix string, width int, number int64) string {
	if width <= 0 {
		return fmt.Sprintf("%s%d", prefix, number)
	}
	return fmt.Sprintf("%s%0*d", prefix, width, number)
}
