package mount

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tOgg1/remotectl/internal/cleanup"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/logging"
	"github.com/tOgg1/remotectl/internal/models"
)

// DefaultShare is mounted when Mount is given an empty share name.
const DefaultShare = "Public"

// Drive mounts shares of one host at a single allocated drive letter.
type Drive struct {
	mu        sync.Mutex
	params    models.ConnectionParameters
	table     Table
	publisher events.Publisher
	logger    zerolog.Logger

	letter  DriveLetter
	mounted bool
}

// Option configures a Drive.
type Option func(*Drive)

// WithPublisher sends mount audit events to pub.
func WithPublisher(pub events.Publisher) Option {
	return func(d *Drive) {
		d.publisher = pub
	}
}

// NewDrive creates a Drive for params over table.
func NewDrive(params models.ConnectionParameters, table Table, opts ...Option) *Drive {
	d := &Drive{
		params: params,
		table:  table,
		logger: logging.WithHost(logging.Component("mount"), params.Host()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AllocateFreeLetter returns the smallest letter the OS does not report as
// assigned. The first successful result is cached for the life of the Drive;
// another Drive may be handed the same letter until this one is mounted.
func (d *Drive) AllocateFreeLetter(ctx context.Context) (DriveLetter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocate(ctx)
}

func (d *Drive) allocate(ctx context.Context) (DriveLetter, error) {
	if d.letter != 0 {
		return d.letter, nil
	}

	assigned, err := d.table.Assigned(ctx)
	if err != nil {
		return 0, err
	}
	letter, err := lowestFree(assigned)
	if err != nil {
		return 0, err
	}

	d.letter = letter
	d.logger.Debug().Str("letter", letter.String()).Msg("allocated free drive letter")
	return letter, nil
}

// Letter returns the allocated letter, if any.
func (d *Drive) Letter() (DriveLetter, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.letter, d.letter != 0
}

// SharePath returns the UNC path of share on the host.
func (d *Drive) SharePath(share string) string {
	if share == "" {
		share = DefaultShare
	}
	return fmt.Sprintf(`\\%s\%s`, d.params.Host(), share)
}

// Mount attaches share at the allocated letter. The returned Release unmounts
// and logs, rather than returns, a failure to detach.
func (d *Drive) Mount(ctx context.Context, share string) (cleanup.Release, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	letter, err := d.allocate(ctx)
	if err != nil {
		return nil, err
	}

	path := d.SharePath(share)
	if err := d.table.Attach(ctx, letter, path); err != nil {
		return nil, fmt.Errorf("mount %s at %s: %w", path, letter, err)
	}
	d.mounted = true

	d.logger.Info().Str("letter", letter.String()).Str("share", path).Msg("share mounted")
	events.Emit(ctx, d.publisher, models.EventTypeMountAttached, models.EntityTypeMount, letter.String(), map[string]string{
		"share": path,
	})

	return cleanup.Once(func(ctx context.Context) error {
		if err := d.Unmount(ctx); err != nil {
			d.logger.Warn().Err(err).Str("letter", letter.String()).Msg("unmount failed")
		}
		return nil
	}), nil
}

// Unmount detaches the share. Unmounting a Drive that is not mounted is a
// no-op; an OS failure is returned.
func (d *Drive) Unmount(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.mounted {
		return nil
	}
	if err := d.table.Detach(ctx, d.letter); err != nil {
		return fmt.Errorf("unmount %s: %w", d.letter, err)
	}
	d.mounted = false

	d.logger.Info().Str("letter", d.letter.String()).Msg("share unmounted")
	events.Emit(ctx, d.publisher, models.EventTypeMountDetached, models.EntityTypeMount, d.letter.String(), nil)
	return nil
}
