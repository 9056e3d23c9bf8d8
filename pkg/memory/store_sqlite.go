package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the canonical persistent memory store. Rows are insert-only.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the memory database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One agent process owns the database; a single connection keeps SQLite
	// writer locks out of the way.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS raw_traces (
			id TEXT PRIMARY KEY,
			ts REAL NOT NULL,
			turn_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			trace_type TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			source_event TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			tool_call_id TEXT NOT NULL DEFAULT '',
			tool_args_json TEXT NOT NULL DEFAULT 'null',
			tool_result_json TEXT NOT NULL DEFAULT 'null',
			tool_error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS raw_traces_turn_seq_idx ON raw_traces(turn_id, seq);`,
		`CREATE TABLE IF NOT EXISTS episodic_items (
			id TEXT PRIMARY KEY,
			ts REAL NOT NULL,
			turn_ids_json TEXT NOT NULL DEFAULT '[]',
			summary TEXT NOT NULL,
			tags_json TEXT NOT NULL DEFAULT '[]',
			salience REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS semantic_items (
			id TEXT PRIMARY KEY,
			ts REAL NOT NULL,
			fact TEXT NOT NULL,
			tags_json TEXT NOT NULL DEFAULT '[]',
			confidence REAL NOT NULL DEFAULT 0,
			salience REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TRIGGER IF NOT EXISTS raw_traces_immutable BEFORE UPDATE ON raw_traces BEGIN
			SELECT RAISE(ABORT, 'raw trace items are immutable');
		END;`,
		`CREATE TRIGGER IF NOT EXISTS episodic_items_immutable BEFORE UPDATE ON episodic_items BEGIN
			SELECT RAISE(ABORT, 'episodic items are immutable');
		END;`,
		`CREATE TRIGGER IF NOT EXISTS semantic_items_immutable BEFORE UPDATE ON semantic_items BEGIN
			SELECT RAISE(ABORT, 'semantic items are immutable');
		END;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func (s *SQLiteStore) Add(ctx context.Context, items ...Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add items begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if err := insertItemTx(ctx, tx, item); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add items commit: %w", err)
	}
	return nil
}

func insertItemTx(ctx context.Context, tx *sql.Tx, item Item) error {
	if item == nil || strings.TrimSpace(item.ItemID()) == "" {
		return fmt.Errorf("add item: empty id")
	}
	var err error
	switch it := item.(type) {
	case *RawTraceItem:
		if strings.TrimSpace(it.TurnID) == "" {
			return fmt.Errorf("add raw trace %s: empty turn_id", it.ID)
		}
		if !it.TraceType.valid() {
			return fmt.Errorf("add raw trace %s: unknown trace type %q", it.ID, it.TraceType)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO raw_traces(id, ts, turn_id, seq, trace_type, content, source_event, tool_name, tool_call_id, tool_args_json, tool_result_json, tool_error)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.TS, it.TurnID, it.Seq, string(it.TraceType), it.Content, it.SourceEvent,
			it.ToolName, it.ToolCallID, encodeJSONValue(it.ToolArgs), encodeJSONValue(it.ToolResult), it.ToolError)
		if err != nil {
			return wrapInsertError("raw trace", it.ID, err)
		}
	case *EpisodicItem:
		_, err = tx.ExecContext(ctx, `
INSERT INTO episodic_items(id, ts, turn_ids_json, summary, tags_json, salience)
VALUES(?, ?, ?, ?, ?, ?)`,
			it.ID, it.TS, encodeStrings(it.TurnIDs), it.Summary, encodeStrings(it.Tags), it.Salience)
		if err != nil {
			return wrapInsertError("episodic item", it.ID, err)
		}
	case *SemanticItem:
		_, err = tx.ExecContext(ctx, `
INSERT INTO semantic_items(id, ts, fact, tags_json, confidence, salience)
VALUES(?, ?, ?, ?, ?, ?)`,
			it.ID, it.TS, it.Fact, encodeStrings(it.Tags), it.Confidence, it.Salience)
		if err != nil {
			return wrapInsertError("semantic item", it.ID, err)
		}
	default:
		return fmt.Errorf("add item: unsupported type %T", item)
	}
	return nil
}

func wrapInsertError(kind, id string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("add %s %s: %w", kind, id, ErrImmutableItem)
	}
	return fmt.Errorf("add %s %s: %w", kind, id, err)
}

const rawTraceColumns = `id, ts, turn_id, seq, trace_type, content, source_event, tool_name, tool_call_id, tool_args_json, tool_result_json, tool_error`

func (s *SQLiteStore) RawTrace(ctx context.Context) ([]RawTraceItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+rawTraceColumns+` FROM raw_traces ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list raw trace: %w", err)
	}
	defer rows.Close()
	return scanRawTraces(rows)
}

func (s *SQLiteStore) RawTraceByTurn(ctx context.Context, turnID string) ([]RawTraceItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+rawTraceColumns+` FROM raw_traces WHERE turn_id = ? ORDER BY seq ASC, rowid ASC`, turnID)
	if err != nil {
		return nil, fmt.Errorf("list raw trace for turn %s: %w", turnID, err)
	}
	defer rows.Close()
	return scanRawTraces(rows)
}

func scanRawTraces(rows *sql.Rows) ([]RawTraceItem, error) {
	out := []RawTraceItem{}
	for rows.Next() {
		var it RawTraceItem
		var traceType, argsRaw, resultRaw string
		if err := rows.Scan(&it.ID, &it.TS, &it.TurnID, &it.Seq, &traceType, &it.Content, &it.SourceEvent,
			&it.ToolName, &it.ToolCallID, &argsRaw, &resultRaw, &it.ToolError); err != nil {
			return nil, fmt.Errorf("scan raw trace: %w", err)
		}
		it.TraceType = TraceType(traceType)
		if args, ok := decodeJSONValue(argsRaw).(map[string]interface{}); ok {
			it.ToolArgs = args
		}
		it.ToolResult = decodeJSONValue(resultRaw)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw trace: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Episodic(ctx context.Context) ([]EpisodicItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ts, turn_ids_json, summary, tags_json, salience FROM episodic_items ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list episodic items: %w", err)
	}
	defer rows.Close()

	out := []EpisodicItem{}
	for rows.Next() {
		var it EpisodicItem
		var turnsRaw, tagsRaw string
		if err := rows.Scan(&it.ID, &it.TS, &turnsRaw, &it.Summary, &tagsRaw, &it.Salience); err != nil {
			return nil, fmt.Errorf("scan episodic item: %w", err)
		}
		it.TurnIDs = decodeStrings(turnsRaw)
		it.Tags = decodeStrings(tagsRaw)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodic items: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Semantic(ctx context.Context) ([]SemanticItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ts, fact, tags_json, confidence, salience FROM semantic_items ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list semantic items: %w", err)
	}
	defer rows.Close()

	out := []SemanticItem{}
	for rows.Next() {
		var it SemanticItem
		var tagsRaw string
		if err := rows.Scan(&it.ID, &it.TS, &it.Fact, &tagsRaw, &it.Confidence, &it.Salience); err != nil {
			return nil, fmt.Errorf("scan semantic item: %w", err)
		}
		it.Tags = decodeStrings(tagsRaw)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate semantic items: %w", err)
	}
	return out, nil
}

// encodeJSONValue stores v as JSON, coercing values json rejects with
// fmt.Sprint.
func encodeJSONValue(v interface{}) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprint(v))
	}
	return string(b)
}

func decodeJSONValue(raw string) interface{} {
	if raw == "" || raw == "null" {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return raw
	}
	return out
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}
