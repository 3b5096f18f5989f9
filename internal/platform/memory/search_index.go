package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/taskq/internal/domain"
	"github.com/phrazzld/taskq/internal/store"
)

// SearchIndex is an in-memory replica of service documents.
type SearchIndex struct {
	mu   sync.Mutex
	docs map[string]*domain.ServiceMetadata
	err  error
}

// NewSearchIndex returns an empty index.
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{docs: make(map[string]*domain.ServiceMetadata)}
}

// SetFailure makes every subsequent write fail with err until it is reset
// with nil.
func (i *SearchIndex) SetFailure(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.err = err
}

// IndexService stores svc, replacing any previous document.
func (i *SearchIndex) IndexService(ctx context.Context, svc *domain.ServiceMetadata) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.err != nil {
		return i.err
	}
	i.docs[svc.ServiceID] = cloneService(svc)
	return nil
}

// UpdateService replaces the document of svc, creating it when missing.
func (i *SearchIndex) UpdateService(ctx context.Context, svc *domain.ServiceMetadata) error {
	return i.IndexService(ctx, svc)
}

// Document returns the indexed copy of serviceID.
func (i *SearchIndex) Document(serviceID string) (*domain.ServiceMetadata, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc, ok := i.docs[serviceID]
	if !ok {
		return nil, store.ErrServiceNotFound
	}
	return cloneService(doc), nil
}

// Len returns the number of indexed documents.
func (i *SearchIndex) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.docs)
}
