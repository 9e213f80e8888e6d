package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/klauspost/compress/zstd"

	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/audit"
	"fieldledger/pkg/logger"
)

// CompressionAlgo specifies how audit metadata is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditOptions tunes the audit writer.
type AuditOptions struct {
	// Buffer is the number of events queued before Record starts dropping.
	Buffer int
	// CompressThreshold is the metadata size in bytes above which it is
	// stored zstd-compressed.
	CompressThreshold int
}

// DefaultAuditOptions returns the defaults.
func DefaultAuditOptions() AuditOptions {
	return AuditOptions{Buffer: 256, CompressThreshold: 4 * 1024}
}

type auditRow struct {
	ID                 id.ID           `db:"id"`
	EntityKind         string          `db:"entity_kind"`
	EntityID           id.ID           `db:"entity_id"`
	Action             string          `db:"action"`
	OrgID              string          `db:"org_id"`
	UserID             string          `db:"user_id"`
	Metadata           *string         `db:"metadata"`
	MetadataCompressed []byte          `db:"metadata_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`
	CreatedAt          time.Time       `db:"created_at"`
}

var auditCols = ExtractDBColumns[auditRow]()

// AuditLog is an asynchronous audit.Sink backed by sys_audit.
// Record never blocks; a background goroutine writes the events.
type AuditLog struct {
	txm       *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
	log       *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan audit.Event
	done   chan struct{}
}

// NewAuditLog starts the writer. Call Close to flush and stop it.
func NewAuditLog(txm *TxManager, opts AuditOptions, log *logger.Logger) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultAuditOptions().Buffer
	}
	if opts.CompressThreshold <= 0 {
		opts.CompressThreshold = DefaultAuditOptions().CompressThreshold
	}
	if log == nil {
		log = logger.Default()
	}

	a := &AuditLog{
		txm:       txm,
		encoder:   encoder,
		decoder:   decoder,
		threshold: opts.CompressThreshold,
		log:       log.WithComponent("audit"),
		queue:     make(chan audit.Event, opts.Buffer),
		done:      make(chan struct{}),
	}
	go a.run()
	return a, nil
}

// Record queues ev. A full queue or a closed log drops the event with a
// warning.
func (a *AuditLog) Record(ctx context.Context, ev audit.Event) {
	ev = audit.Enrich(ctx, ev)
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.log.Warnw("audit event after close dropped", "entity_kind", ev.EntityKind, "entity_id", ev.EntityID)
		return
	}
	select {
	case a.queue <- ev:
	default:
		a.log.Warnw("audit queue full, event dropped", "entity_kind", ev.EntityKind, "entity_id", ev.EntityID)
	}
}

// Close stops accepting events and waits until queued ones are written.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	first := !a.closed
	if first {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	<-a.done
	if !first {
		return nil
	}
	return a.encoder.Close()
}

func (a *AuditLog) run() {
	defer close(a.done)
	for ev := range a.queue {
		if err := a.write(context.Background(), ev); err != nil {
			a.log.Errorw("audit write failed",
				"error", err, "entity_kind", ev.EntityKind, "entity_id", ev.EntityID, "action", ev.Action)
		}
	}
}

func (a *AuditLog) write(ctx context.Context, ev audit.Event) error {
	row := auditRow{
		ID:              id.New(),
		EntityKind:      ev.EntityKind,
		EntityID:        ev.EntityID,
		Action:          string(ev.Action),
		OrgID:           ev.OrgID,
		UserID:          ev.UserID,
		CompressionAlgo: CompressionNone,
		CreatedAt:       ev.At.UTC(),
	}

	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if len(raw) > a.threshold {
			row.MetadataCompressed = a.encoder.EncodeAll(raw, nil)
			row.CompressionAlgo = CompressionZstd
		} else {
			s := string(raw)
			row.Metadata = &s
		}
	}

	query, args, err := builder().Insert("sys_audit").SetMap(StructToMap(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := a.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// History returns the audit trail of one entity, oldest first.
func (a *AuditLog) History(ctx context.Context, entityKind string, entityID id.ID, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query, args, err := builder().
		Select(auditCols...).
		From("sys_audit").
		Where(squirrel.Eq{"entity_kind": entityKind, "entity_id": entityID.String()}).
		OrderBy("created_at ASC", "rowid ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []auditRow
	if err := sqlscan.Select(ctx, a.txm.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	events := make([]audit.Event, 0, len(rows))
	for _, r := range rows {
		ev := audit.Event{
			EntityKind: r.EntityKind,
			EntityID:   r.EntityID,
			Action:     audit.Action(r.Action),
			OrgID:      r.OrgID,
			UserID:     r.UserID,
			At:         r.CreatedAt,
		}

		var raw []byte
		switch {
		case r.CompressionAlgo == CompressionZstd && len(r.MetadataCompressed) > 0:
			raw, err = a.decoder.DecodeAll(r.MetadataCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress metadata: %w", err)
			}
		case r.Metadata != nil:
			raw = []byte(*r.Metadata)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

var _ audit.Sink = (*AuditLog)(nil)
