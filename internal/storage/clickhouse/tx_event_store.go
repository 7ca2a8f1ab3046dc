package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-custody-lab/internal/domain"
	"solana-custody-lab/internal/observability"
	"solana-custody-lab/internal/storage"
)

// TxEventStore implements storage.TxEventStore using ClickHouse.
type TxEventStore struct {
	conn *Conn
}

// NewTxEventStore creates a new TxEventStore.
func NewTxEventStore(conn *Conn) *TxEventStore {
	return &TxEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TxEventStore = (*TxEventStore)(nil)

// Insert appends an event. MergeTree does not enforce uniqueness, so the
// signature is checked before the write.
func (s *TxEventStore) Insert(ctx context.Context, e *domain.TxEvent) (err error) {
	if e == nil || e.Signature == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_tx_event", time.Since(start).Seconds(), err)
	}()

	exists, err := s.exists(ctx, e.Signature)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	effects, err := json.Marshal(e.Effects)
	if err != nil {
		return fmt.Errorf("encode effects: %w", err)
	}
	signers := e.Signers
	if signers == nil {
		signers = []string{}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tx_events (
			signature, sequence, slot, block_time, program, instruction,
			signers, status, error_code, effects
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.Signature, e.Sequence, e.Slot, e.BlockTime, e.Program, e.Instruction,
		signers, string(e.Status), e.ErrorCode, string(effects),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySignature retrieves an event by signature.
func (s *TxEventStore) GetBySignature(ctx context.Context, signature string) (*domain.TxEvent, error) {
	query := `
		SELECT signature, sequence, slot, block_time, program, instruction,
		       signers, status, error_code, effects
		FROM tx_events
		WHERE signature = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("query by signature: %w", err)
	}
	defer rows.Close()

	events, err := scanTxEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[0], nil
}

// GetByProgram retrieves events for a program within [start, end] slots,
// ordered by slot then signature.
func (s *TxEventStore) GetByProgram(ctx context.Context, program string, start, end uint64) ([]*domain.TxEvent, error) {
	query := `
		SELECT signature, sequence, slot, block_time, program, instruction,
		       signers, status, error_code, effects
		FROM tx_events
		WHERE program = ? AND slot >= ? AND slot <= ?
		ORDER BY slot ASC, signature ASC
	`

	rows, err := s.conn.Query(ctx, query, program, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by program: %w", err)
	}
	defer rows.Close()

	return scanTxEvents(rows)
}

// LastSequence returns the highest recorded sequence, or 0 for an empty table.
func (s *TxEventStore) LastSequence(ctx context.Context) (uint64, error) {
	var seq uint64
	if err := s.conn.QueryRow(ctx, `SELECT max(sequence) FROM tx_events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	return seq, nil
}

func (s *TxEventStore) exists(ctx context.Context, signature string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM tx_events WHERE signature = ?`, signature).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTxEvents(rows driver.Rows) ([]*domain.TxEvent, error) {
	var events []*domain.TxEvent

	for rows.Next() {
		var e domain.TxEvent
		var status, effects string

		err := rows.Scan(
			&e.Signature, &e.Sequence, &e.Slot, &e.BlockTime, &e.Program, &e.Instruction,
			&e.Signers, &status, &e.ErrorCode, &effects,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tx event: %w", err)
		}
		e.Status = domain.TxStatus(status)
		if effects != "" && effects != "null" {
			if err := json.Unmarshal([]byte(effects), &e.Effects); err != nil {
				return nil, fmt.Errorf("decode effects of %s: %w", e.Signature, err)
			}
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}
