package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"budgetform/internal/core"
)

// RowStore persists summary rows in the local outbox.
type RowStore interface {
	InsertRow(ctx context.Context, sessionID string, row core.Row) (int64, error)
	Close() error
}

// SyncPublisher announces a stored row to the sync worker.
type SyncPublisher interface {
	PublishRowSync(ctx context.Context, id int64, sessionID string) error
	Close() error
}

// RecordService stores summary rows locally and queues them for the
// spreadsheet sync.
type RecordService struct {
	store     RowStore
	publisher SyncPublisher
}

// NewRecordService wires a store with an optional publisher. A nil publisher
// leaves rows for the worker's periodic pending sweep.
func NewRecordService(store RowStore, publisher SyncPublisher) *RecordService {
	return &RecordService{store: store, publisher: publisher}
}

// Record saves row and publishes a sync message. A failed publish is logged
// and does not fail the call: the row is already safe in the outbox.
func (s *RecordService) Record(ctx context.Context, sessionID string, row core.Row) (string, error) {
	if s.store == nil {
		return "", errors.New("record service has no store")
	}
	if err := row.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.InsertRow(ctx, sessionID, row)
	if err != nil {
		return "", fmt.Errorf("save summary row: %w", err)
	}
	ref := strconv.FormatInt(id, 10)

	if err := s.publishSyncMessage(ctx, id, sessionID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "session_id", sessionID, "error", err)
	}
	return ref, nil
}

func (s *RecordService) publishSyncMessage(ctx context.Context, id int64, sessionID string) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, row left for pending sweep", "id", id)
		return nil
	}
	return s.publisher.PublishRowSync(ctx, id, sessionID)
}

// Close closes both the store and the publisher.
func (s *RecordService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close record service: %w", errors.Join(errs...))
	}
	return nil
}
