package shield

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soteria-labs/soteria/pkg/detect"
)

// Stage names where a request ended.
type Stage string

const (
	StageBlockedInput  Stage = "blocked_input"
	StageBlockedOutput Stage = "blocked_output"
	StageAllowed       Stage = "allowed"
)

// FailureRecord is one append-only evidence record. Records where the input
// guard passed but the output guard blocked are the raw material for the
// offline optimizer; this process only writes them, never reads them back.
type FailureRecord struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	InputText     string         `json:"input_text"`
	OutputText    string         `json:"output_text"`
	Stage         Stage          `json:"stage"`
	VerdictDetail detect.Verdict `json:"verdict_detail"`
}

// FailureSink persists failure records. Implementations must be safe for
// concurrent use.
type FailureSink interface {
	Append(ctx context.Context, rec FailureRecord) error
	Close() error
}

// NewFailureRecord stamps a record with an ID and the current time.
func NewFailureRecord(stage Stage, input, output string, verdict detect.Verdict) FailureRecord {
	return FailureRecord{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		InputText:     input,
		OutputText:    output,
		Stage:         stage,
		VerdictDetail: verdict,
	}
}

// FileSink appends records as JSON lines to a local file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open failure log: %w", err)
	}
	return &FileSink{file: f, enc: json.NewEncoder(f)}, nil
}

func (s *FileSink) Append(_ context.Context, rec FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("append failure record: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// PostgresSink appends records to a failure_records table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

const failureSchema = `
CREATE TABLE IF NOT EXISTS failure_records (
	id            UUID PRIMARY KEY,
	created_at    TIMESTAMPTZ NOT NULL,
	input_text    TEXT NOT NULL,
	output_text   TEXT NOT NULL,
	stage         TEXT NOT NULL,
	verdict       JSONB NOT NULL
)`

// NewPostgresSink connects and ensures the table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect failure store: %w", err)
	}
	if _, err := pool.Exec(ctx, failureSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure failure table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Append(ctx context.Context, rec FailureRecord) error {
	verdict, err := json.Marshal(rec.VerdictDetail)
	if err != nil {
		return fmt.Errorf("encode verdict detail: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO failure_records (id, created_at, input_text, output_text, stage, verdict)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Timestamp, rec.InputText, rec.OutputText, string(rec.Stage), verdict,
	)
	if err != nil {
		return fmt.Errorf("insert failure record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
