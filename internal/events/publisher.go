// Package events provides audit event publishing for remote operations.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tOgg1/remotectl/internal/models"
)

// EventHandler is a callback function invoked when an event matches a subscription.
type EventHandler func(event *models.Event)

// Repository persists events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// Filter defines criteria for matching events.
type Filter struct {
	// EventTypes filters by event type (nil = all types).
	EventTypes []models.EventType

	// EntityTypes filters by entity type (nil = all entities).
	EntityTypes []models.EntityType

	// EntityID filters to a specific entity ID (empty = all).
	EntityID string
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event *models.Event) bool {
	if event == nil {
		return false
	}

	if len(f.EventTypes) > 0 && !containsType(f.EventTypes, event.Type) {
		return false
	}
	if len(f.EntityTypes) > 0 && !containsEntity(f.EntityTypes, event.EntityType) {
		return false
	}
	if f.EntityID != "" && event.EntityID != f.EntityID {
		return false
	}

	return true
}

func containsType(types []models.EventType, t models.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsEntity(types []models.EntityType, t models.EntityType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// Publisher defines the interface for event publishing.
type Publisher interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event *models.Event)
}

type subscription struct {
	filter  Filter
	handler EventHandler
}

// InMemoryPublisher implements Publisher using in-process pub/sub.
type InMemoryPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	repo          Repository
	onPersistErr  func(error)
}

// PublisherOption configures an InMemoryPublisher.
type PublisherOption func(*InMemoryPublisher)

// WithRepository configures the publisher to also persist events.
func WithRepository(repo Repository) PublisherOption {
	return func(p *InMemoryPublisher) {
		p.repo = repo
	}
}

// WithPersistErrorHandler observes repository failures, which never fail Publish.
func WithPersistErrorHandler(fn func(error)) PublisherOption {
	return func(p *InMemoryPublisher) {
		p.onPersistErr = fn
	}
}

// NewInMemoryPublisher creates a new in-memory event publisher.
func NewInMemoryPublisher(opts ...PublisherOption) *InMemoryPublisher {
	p := &InMemoryPublisher{
		subscriptions: make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an event to all matching subscribers.
// If a repository is configured, the event is also persisted.
func (p *InMemoryPublisher) Publish(ctx context.Context, event *models.Event) {
	if event == nil {
		return
	}

	if p.repo != nil {
		if err := p.repo.Create(ctx, event); err != nil && p.onPersistErr != nil {
			p.onPersistErr(err)
		}
	}

	p.mu.RLock()
	var handlers []EventHandler
	for _, sub := range p.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	// Invoke handlers outside the lock to avoid deadlocks
	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler to receive events matching the filter.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler EventHandler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}
	p.subscriptions[id] = &subscription{filter: filter, handler: handler}
	return nil
}

// Unsubscribe removes a subscription by ID.
func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}
	delete(p.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (p *InMemoryPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

// Emit builds an event and publishes it. A nil publisher is allowed. Payload
// values that cannot be encoded are dropped.
func Emit(ctx context.Context, pub Publisher, eventType models.EventType, entityType models.EntityType, entityID string, payload any) {
	if pub == nil {
		return
	}
	event := &models.Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			event.Payload = data
		}
	}
	pub.Publish(ctx, event)
}

// Errors for publisher operations.
var (
	ErrInvalidSubscriptionID = &PublisherError{Message: "subscription ID is required"}
	ErrNilHandler            = &PublisherError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &PublisherError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &PublisherError{Message: "subscription not found"}
)

// PublisherError represents an error from publisher operations.
type PublisherError struct {
	Message string
}

func (e *PublisherError) Error() string {
	return e.Message
}
