package domain

import (
	"errors"
	"strings"
	"time"
)

// Common validation errors for ServiceMetadata
var (
	ErrServiceNameEmpty = errors.New("service name cannot be empty")
	ErrServiceTimeout   = errors.New("service timeout cannot be negative")
)

// ResourceMetadata is the free-form descriptive block of a service.
type ResourceMetadata struct {
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Version        string         `json:"version,omitempty"`
	Classification string         `json:"classification,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// ServiceMetadata describes a registered service. The authoritative copy
// lives in the metadata store; the search index holds a replica with the
// same ServiceID.
type ServiceMetadata struct {
	ServiceID        string           `json:"service_id"`
	Name             string           `json:"name"`
	URL              string           `json:"url,omitempty"`
	Method           string           `json:"method,omitempty"`
	IsTaskManaged    bool             `json:"is_task_managed"`
	Timeout          int              `json:"timeout,omitempty"`
	ResourceMetadata ResourceMetadata `json:"resource_metadata"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Validate checks the metadata has the fields every store requires.
// ServiceID may be empty for records that have not been assigned one yet.
func (s *ServiceMetadata) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrServiceNameEmpty
	}
	if s.Timeout < 0 {
		return ErrServiceTimeout
	}
	return nil
}

// DisplayName returns the resource name when present, the service name otherwise.
func (s *ServiceMetadata) DisplayName() string {
	if s.ResourceMetadata.Name != "" {
		return s.ResourceMetadata.Name
	}
	return s.Name
}
