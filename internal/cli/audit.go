package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/remotectl/internal/cleanup"
	"github.com/tOgg1/remotectl/internal/db"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/logging"
	"github.com/tOgg1/remotectl/internal/models"
)

var (
	auditType     string
	auditEntity   string
	auditEntityID string
	auditSince    time.Duration
	auditLimit    int
	auditCursor   string

	auditOlderThan time.Duration
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditListCmd.Flags().StringVar(&auditType, "type", "", "filter by event type (e.g. transfer.completed)")
	auditListCmd.Flags().StringVar(&auditEntity, "entity", "", "filter by entity type (session, credential, mount, transfer)")
	auditListCmd.Flags().StringVar(&auditEntityID, "entity-id", "", "filter by entity id (host, drive letter, session id)")
	auditListCmd.Flags().DurationVar(&auditSince, "since", 0, "only events newer than this (e.g. 1h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum events to list")
	auditListCmd.Flags().StringVar(&auditCursor, "cursor", "", "continue after this event id")

	auditPruneCmd.Flags().DurationVar(&auditOlderThan, "older-than", 30*24*time.Hour, "remove events older than this")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
	Long: `Inspect the audit trail of sessions, credentials, mounts and transfers.

Events are recorded only when audit.enabled is set in the configuration.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openAuditDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		query := db.EventQuery{Cursor: auditCursor, Limit: auditLimit}
		if auditType != "" {
			t := models.EventType(auditType)
			query.Type = &t
		}
		if auditEntity != "" {
			e := models.EntityType(auditEntity)
			query.EntityType = &e
		}
		if auditEntityID != "" {
			query.EntityID = &auditEntityID
		}
		if auditSince > 0 {
			since := time.Now().Add(-auditSince)
			query.Since = &since
		}

		page, err := db.NewEventRepository(database).Query(ctx, query)
		if err != nil {
			return err
		}

		if IsStructuredOutput() {
			views := make([]eventView, 0, len(page.Events))
			for _, event := range page.Events {
				views = append(views, newEventView(event))
			}
			return WriteOutput(cmd.OutOrStdout(), eventList{Events: views, NextCursor: page.NextCursor})
		}

		if len(page.Events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events found.")
			return nil
		}

		rows := make([][]string, 0, len(page.Events))
		for _, event := range page.Events {
			rows = append(rows, []string{
				event.Timestamp.Local().Format("2006-01-02 15:04:05"),
				string(event.Type),
				string(event.EntityType),
				event.EntityID,
				string(event.Payload),
			})
		}
		if err := writeTable(cmd.OutOrStdout(), []string{"TIME", "TYPE", "ENTITY", "ID", "DETAILS"}, rows); err != nil {
			return err
		}
		if page.NextCursor != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\nMore events: --cursor %s\n", page.NextCursor)
		}
		return nil
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old audit events",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditOlderThan <= 0 {
			return &UsageError{Err: errors.New("--older-than must be positive")}
		}

		ctx := cmd.Context()
		database, err := openAuditDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		removed, err := db.NewEventRepository(database).DeleteOlderThan(ctx, time.Now().Add(-auditOlderThan))
		if err != nil {
			return err
		}

		if IsStructuredOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]int64{"removed": removed})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d event(s).\n", removed)
		return nil
	},
}

// eventView renders the JSON payload as a nested document in every format.
type eventView struct {
	ID         string            `json:"id" yaml:"id"`
	Timestamp  time.Time         `json:"timestamp" yaml:"timestamp"`
	Type       models.EventType  `json:"type" yaml:"type"`
	EntityType models.EntityType `json:"entity_type" yaml:"entity_type"`
	EntityID   string            `json:"entity_id" yaml:"entity_id"`
	Payload    map[string]any    `json:"payload,omitempty" yaml:"payload,omitempty"`
}

type eventList struct {
	Events     []eventView `json:"events" yaml:"events"`
	NextCursor string      `json:"next_cursor,omitempty" yaml:"next_cursor,omitempty"`
}

func newEventView(event *models.Event) eventView {
	view := eventView{
		ID:         event.ID,
		Timestamp:  event.Timestamp,
		Type:       event.Type,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
	}
	if len(event.Payload) > 0 {
		_ = json.Unmarshal(event.Payload, &view.Payload)
	}
	return view
}

func openAuditDatabase(ctx context.Context) (*db.DB, error) {
	path := GetConfig().AuditPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no audit database at %s (set audit.enabled to record events)", path)
		}
		return nil, err
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// newPublisher returns the publisher every component reports to. Events are
// always logged at debug level and persisted when auditing is enabled; a
// database that cannot be opened disables persistence but never fails the
// command. The release closes the database.
func newPublisher(ctx context.Context) (*events.InMemoryPublisher, cleanup.Release) {
	cfg := GetConfig()
	logger := logging.Component("audit")

	var opts []events.PublisherOption
	release := cleanup.Release(cleanup.Noop)

	if cfg.Audit.Enabled {
		database, err := db.Open(cfg.AuditPath())
		if err == nil {
			err = database.Migrate(ctx)
			if err != nil {
				database.Close()
			}
		}
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.AuditPath()).Msg("audit trail disabled")
		} else {
			repo := db.NewEventRepository(database)
			if cfg.Audit.MaxAge > 0 {
				if removed, err := repo.DeleteOlderThan(ctx, time.Now().Add(-cfg.Audit.MaxAge)); err != nil {
					logger.Warn().Err(err).Msg("failed to prune audit events")
				} else if removed > 0 {
					logger.Debug().Int64("removed", removed).Msg("pruned audit events")
				}
			}
			opts = append(opts,
				events.WithRepository(repo),
				events.WithPersistErrorHandler(func(err error) {
					logger.Warn().Err(err).Msg("failed to record audit event")
				}),
			)
			release = cleanup.Once(func(context.Context) error {
				return database.Close()
			})
		}
	}

	pub := events.NewInMemoryPublisher(opts...)
	_ = pub.Subscribe("log", events.Filter{}, func(event *models.Event) {
		logger.Debug().
			Str("type", string(event.Type)).
			Str("entity", string(event.EntityType)).
			Str("id", event.EntityID).
			RawJSON("payload", payloadOrNull(event.Payload)).
			Msg("event")
	})
	return pub, release
}

func payloadOrNull(payload json.RawMessage) []byte {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return []byte("null")
	}
	return payload
}
