package credential

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tOgg1/remotectl/internal/cleanup"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/logging"
	"github.com/tOgg1/remotectl/internal/models"
)

// Store registers and revokes host credentials in a Table.
type Store struct {
	table     Table
	publisher events.Publisher
	logger    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher sends credential audit events to pub.
func WithPublisher(pub events.Publisher) Option {
	return func(s *Store) {
		s.publisher = pub
	}
}

// NewStore creates a Store over table.
func NewStore(table Table, opts ...Option) *Store {
	s := &Store{
		table:  table,
		logger: logging.Component("credential"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register replaces any credential for the host with a domain and a generic
// entry. When the table already held both kinds before registration, the
// returned Release is a no-op and the entries outlive the process; otherwise
// it revokes the credential.
func (s *Store) Register(ctx context.Context, params models.ConnectionParameters) (cleanup.Release, error) {
	host := params.Host()
	logger := logging.WithHost(s.logger, host)

	before, err := s.table.List(ctx, host)
	if err != nil {
		logger.Debug().Err(err).Msg("credential listing failed; assuming none")
		before = Listing{}
	}

	if err := s.table.Delete(ctx, host); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Debug().Err(err).Msg("removing previous credential failed")
	}

	for _, kind := range []Kind{KindDomain, KindGeneric} {
		entry := Entry{Target: host, Username: params.Username(), Password: params.Password(), Kind: kind}
		if err := s.table.Add(ctx, entry); err != nil {
			return nil, err
		}
	}

	logger.Info().Str("user", params.Username()).Bool("preexisting", before.Complete()).Msg("credential registered")
	events.Emit(ctx, s.publisher, models.EventTypeCredentialRegistered, models.EntityTypeCredential, host, map[string]any{
		"user":        params.Username(),
		"preexisting": before.Complete(),
	})

	if before.Complete() {
		return cleanup.Noop, nil
	}
	return cleanup.Once(func(ctx context.Context) error {
		return s.Revoke(ctx, host)
	}), nil
}

// Revoke deletes the credential for host. A missing entry is not an error.
func (s *Store) Revoke(ctx context.Context, host string) error {
	err := s.table.Delete(ctx, host)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	logger := logging.WithHost(s.logger, host)
	logger.Info().Bool("existed", err == nil).Msg("credential revoked")
	events.Emit(ctx, s.publisher, models.EventTypeCredentialRevoked, models.EntityTypeCredential, host, nil)
	return nil
}
