package dto

// SequenceCounterDTO is the API view of a counter
type SequenceCounterDTO struct {
	Name      string `json:"name"`
	Value     int64  `json:"value"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CounterNameParams carries the :name path parameter for validation
type CounterNameParams struct {
	Name string `json:"name" validate:"required,counter_name"`
}

// NextValueResponse is returned by the allocate endpoint
type NextValueResponse struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// CurrentValueResponse is returned by the read endpoint
type CurrentValueResponse struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ListSequenceCountersResponse is returned by the list endpoint
type ListSequenceCountersResponse struct {
	Counters []SequenceCounterDTO `json:"counters"`
	Total    int                  `json:"total"`
}

// SeedCounterRequest creates a counter continuing from Value
type SeedCounterRequest struct {
	Value *int64 `json:"value" validate:"required,gte=0"`
}

// SeedCounterResponse is returned by the seed endpoint
type SeedCounterResponse struct {
	Message string             `json:"message"`
	Counter SequenceCounterDTO `json:"counter"`
}

// OrderNumberResponse carries a freshly allocated order number
type OrderNumberResponse struct {
	Number  int64  `json:"number"`
	Display string `json:"display"`
}

// HealthResponse is returned by the liveness endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}
