// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/amirphl/order-sequencer/app/dto"
	"github.com/amirphl/order-sequencer/models"
)

// ClientMetadata holds caller information attached to allocation logs
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// logFields flattens the metadata into zap key/value pairs
func (cm *ClientMetadata) logFields() []any {
	if cm == nil {
		return nil
	}
	fields := []any{"ip_address", cm.IPAddress, "user_agent", cm.UserAgent}
	if cm.RequestID != "" {
		fields = append(fields, "request_id", cm.RequestID)
	}
	for k, v := range cm.Additional {
		fields = append(fields, k, v)
	}
	return fields
}

// ToSequenceCounterDTO converts a counter model to its API representation
func ToSequenceCounterDTO(counter models.SequenceCounter) dto.SequenceCounterDTO {
	return dto.SequenceCounterDTO{
		Name:      counter.Name,
		Value:     counter.LastValue,
		CreatedAt: counter.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: counter.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
