package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkoval/gemwatch/internal/domain"
)

// multipartThreshold is the payload size past which snapshots upload in
// concurrent parts instead of a single request. Large collection windows can
// push a listing response well past single-shot territory.
const (
	multipartThreshold = 8 << 20
	snapshotPartSize   = 5 << 20
)

// Snapshotter archives the raw listing payload of each cycle to an object
// store, keeping replayable originals for debugging and backfills.
type Snapshotter struct {
	writer domain.BlobWriter
	logger *slog.Logger
}

// NewSnapshotter creates a Snapshotter writing through the given blob writer.
func NewSnapshotter(writer domain.BlobWriter, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		writer: writer,
		logger: logger.With(slog.String("component", "snapshotter")),
	}
}

// Store uploads one raw listing payload under a date-partitioned key.
func (s *Snapshotter) Store(ctx context.Context, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("listings/%s/%s-%s.json",
		now.Format("2006/01/02"),
		now.Format("150405"),
		uuid.NewString(),
	)

	var err error
	if len(raw) >= multipartThreshold {
		err = s.writer.PutMultipart(ctx, key, raw, "application/json", snapshotPartSize)
	} else {
		err = s.writer.Put(ctx, key, raw, "application/json")
	}
	if err != nil {
		return fmt.Errorf("pipeline: store snapshot: %w", err)
	}

	s.logger.Debug("snapshot stored", slog.String("key", key), slog.Int("bytes", len(raw)))
	return nil
}
