package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dshills/scriptrag/internal/embedder"
	"github.com/dshills/scriptrag/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// Compile-time checks
var (
	_ Storage               = (*SQLiteStorage)(nil)
	_ Tx                    = (*sqliteTx)(nil)
	_ embedder.DurableStore = (*SQLiteStorage)(nil)
)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: databases
	// on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Content operations

func (s *SQLiteStorage) upsertContentWithQuerier(ctx context.Context, q querier, item *types.ContentItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	metadata, err := encodeMetadata(item.Metadata)
	if err != nil {
		return err
	}

	var sequence sql.NullFloat64
	if seq, ok := item.Sequence(); ok {
		sequence = sql.NullFloat64{Float64: seq, Valid: true}
	}

	query := `
		INSERT INTO content_items (type, id, text, metadata, sequence, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(type, id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			sequence = excluded.sequence,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := q.ExecContext(ctx, query, string(item.Type), item.ID, item.Text, metadata, sequence); err != nil {
		return fmt.Errorf("failed to upsert content %s/%s: %w", item.Type, item.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertContent(ctx context.Context, item *types.ContentItem) error {
	return s.upsertContentWithQuerier(ctx, s.querier(), item)
}

func (s *SQLiteStorage) getContentWithQuerier(ctx context.Context, q querier, typ types.ContentType, id string) (*types.ContentItem, error) {
	row := q.QueryRowContext(ctx,
		"SELECT type, id, text, metadata FROM content_items WHERE type = ? AND id = ?",
		string(typ), id)
	item, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *SQLiteStorage) GetContent(ctx context.Context, typ types.ContentType, id string) (*types.ContentItem, error) {
	return s.getContentWithQuerier(ctx, s.querier(), typ, id)
}

func (s *SQLiteStorage) ListContent(ctx context.Context, contentTypes []types.ContentType) ([]*types.ContentItem, error) {
	return s.searchContentWithQuerier(ctx, s.querier(), types.ContentQuery{Types: contentTypes})
}

// searchContentWithQuerier selects candidate items: any term may match the
// text, and every entity filter pair must match the metadata
func (s *SQLiteStorage) searchContentWithQuerier(ctx context.Context, q querier, cq types.ContentQuery) ([]*types.ContentItem, error) {
	query := "SELECT type, id, text, metadata FROM content_items WHERE 1=1"
	var args []interface{}

	if len(cq.Types) > 0 {
		placeholders := make([]string, len(cq.Types))
		for i, t := range cq.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND type IN (" + strings.Join(placeholders, ",") + ")"
	}

	var termClauses []string
	for _, term := range cq.Terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		termClauses = append(termClauses, `LOWER(text) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(term))
	}
	if len(termClauses) > 0 {
		query += " AND (" + strings.Join(termClauses, " OR ") + ")"
	}

	keys := make([]string, 0, len(cq.EntityFilter))
	for k := range cq.EntityFilter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path, ok := jsonPath(k)
		if !ok {
			return nil, fmt.Errorf("%w: invalid metadata key %q", types.ErrInvalidInput, k)
		}
		query += " AND json_extract(metadata, ?) = ?"
		args = append(args, path, cq.EntityFilter[k])
	}

	query += " ORDER BY sequence IS NULL, sequence, type, id"
	switch {
	case cq.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, cq.Limit, max(cq.Offset, 0))
	case cq.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, cq.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search content: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*types.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStorage) SearchContent(ctx context.Context, q types.ContentQuery) ([]*types.ContentItem, error) {
	return s.searchContentWithQuerier(ctx, s.querier(), q)
}

func (s *SQLiteStorage) deleteContentWithQuerier(ctx context.Context, q querier, typ types.ContentType, id string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM content_items WHERE type = ? AND id = ?", string(typ), id)
	if err != nil {
		return fmt.Errorf("failed to delete content %s/%s: %w", typ, id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	// Embeddings are keyed by entity rather than by foreign key
	_, err = q.ExecContext(ctx, "DELETE FROM embeddings WHERE entity_type = ? AND entity_id = ?", string(typ), id)
	return err
}

func (s *SQLiteStorage) DeleteContent(ctx context.Context, typ types.ContentType, id string) error {
	return s.deleteContentWithQuerier(ctx, s.querier(), typ, id)
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, rec *types.EmbeddingRecord) error {
	if rec.Model == "" || rec.EntityID == "" {
		return fmt.Errorf("%w: embedding needs a model and an entity id", types.ErrInvalidInput)
	}
	if len(rec.Vector) == 0 {
		return types.ErrEmptyVector
	}
	if rec.Dimension == 0 {
		rec.Dimension = len(rec.Vector)
	}
	if rec.Dimension != len(rec.Vector) {
		return fmt.Errorf("%w: declared %d, vector has %d", types.ErrDimensionMismatch, rec.Dimension, len(rec.Vector))
	}

	// Every record of a model shares one dimension
	var existing int
	err := q.QueryRowContext(ctx, `
		SELECT dimension FROM embeddings
		WHERE model = ? AND NOT (entity_type = ? AND entity_id = ?)
		LIMIT 1
	`, rec.Model, string(rec.EntityType), rec.EntityID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check model dimension: %w", err)
	}
	if err == nil && existing != rec.Dimension {
		return fmt.Errorf("%w: model %s stores %d, got %d", types.ErrDimensionMismatch, rec.Model, existing, rec.Dimension)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO embeddings (entity_type, entity_id, model, dimension, vector, vector_json, content, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id, model) DO UPDATE SET
			dimension = excluded.dimension,
			vector = excluded.vector,
			vector_json = NULL,
			content = excluded.content,
			content_hash = excluded.content_hash,
			created_at = excluded.created_at
	`
	_, err = q.ExecContext(ctx, query,
		string(rec.EntityType), rec.EntityID, rec.Model, rec.Dimension,
		serializeVector(rec.Vector), rec.Content, rec.ContentHash, rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert embedding %s/%s: %w", rec.EntityType, rec.EntityID, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, rec *types.EmbeddingRecord) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), rec)
}

const embeddingColumns = "entity_type, entity_id, model, dimension, vector, vector_json, content, content_hash, created_at"

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, typ types.ContentType, id, model string) (*types.EmbeddingRecord, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+embeddingColumns+" FROM embeddings WHERE entity_type = ? AND entity_id = ? AND model = ?",
		string(typ), id, model)
	rec, err := scanEmbedding(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, typ types.ContentType, id, model string) (*types.EmbeddingRecord, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), typ, id, model)
}

// listEmbeddingsWithQuerier skips rows whose vector cannot be decoded
func (s *SQLiteStorage) listEmbeddingsWithQuerier(ctx context.Context, q querier, model string, contentTypes []types.ContentType) ([]*types.EmbeddingRecord, error) {
	query := "SELECT " + embeddingColumns + " FROM embeddings WHERE model = ?"
	args := []interface{}{model}
	if len(contentTypes) > 0 {
		placeholders := make([]string, len(contentTypes))
		for i, t := range contentTypes {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND entity_type IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY entity_type, entity_id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*types.EmbeddingRecord
	for rows.Next() {
		rec, err := scanEmbedding(rows)
		if errors.Is(err, ErrCorruptVector) {
			slog.Warn("skipping unreadable embedding", "model", model, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) ListEmbeddings(ctx context.Context, model string, contentTypes []types.ContentType) ([]*types.EmbeddingRecord, error) {
	return s.listEmbeddingsWithQuerier(ctx, s.querier(), model, contentTypes)
}

func (s *SQLiteStorage) deleteEmbeddingWithQuerier(ctx context.Context, q querier, typ types.ContentType, id, model string) error {
	result, err := q.ExecContext(ctx,
		"DELETE FROM embeddings WHERE entity_type = ? AND entity_id = ? AND model = ?",
		string(typ), id, model)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteEmbedding(ctx context.Context, typ types.ContentType, id, model string) error {
	return s.deleteEmbeddingWithQuerier(ctx, s.querier(), typ, id, model)
}

func (s *SQLiteStorage) deleteEmbeddingsOlderThanWithQuerier(ctx context.Context, q querier, cutoff time.Time) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM embeddings WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (s *SQLiteStorage) DeleteEmbeddingsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return s.deleteEmbeddingsOlderThanWithQuerier(ctx, s.querier(), cutoff)
}

// Embedding cache durable layer

func (s *SQLiteStorage) getCachedVectorWithQuerier(ctx context.Context, q querier, hash, model string) (*embedder.CachedVector, error) {
	var blob []byte
	var createdAt, lastAccess int64
	err := q.QueryRowContext(ctx,
		"SELECT vector, created_at, last_access FROM embedding_cache WHERE hash = ? AND model = ?",
		hash, model).Scan(&blob, &createdAt, &lastAccess)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached vector: %w", err)
	}

	vector, err := deserializeVector(blob)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := q.ExecContext(ctx,
		"UPDATE embedding_cache SET last_access = ? WHERE hash = ? AND model = ?",
		now.UnixNano(), hash, model); err != nil {
		return nil, fmt.Errorf("failed to touch cached vector: %w", err)
	}

	return &embedder.CachedVector{
		Hash:       hash,
		Model:      model,
		Vector:     vector,
		CreatedAt:  time.Unix(0, createdAt),
		LastAccess: now,
	}, nil
}

func (s *SQLiteStorage) GetCachedVector(ctx context.Context, hash, model string) (*embedder.CachedVector, error) {
	return s.getCachedVectorWithQuerier(ctx, s.querier(), hash, model)
}

func (s *SQLiteStorage) putCachedVectorWithQuerier(ctx context.Context, q querier, v embedder.CachedVector) error {
	if len(v.Vector) == 0 {
		return types.ErrEmptyVector
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	if v.LastAccess.IsZero() {
		v.LastAccess = v.CreatedAt
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO embedding_cache (hash, model, vector, created_at, last_access)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash, model) DO UPDATE SET
			vector = excluded.vector,
			created_at = excluded.created_at,
			last_access = excluded.last_access
	`, v.Hash, v.Model, serializeVector(v.Vector), v.CreatedAt.UnixNano(), v.LastAccess.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store cached vector: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) PutCachedVector(ctx context.Context, v embedder.CachedVector) error {
	return s.putCachedVectorWithQuerier(ctx, s.querier(), v)
}

func (s *SQLiteStorage) deleteCachedVectorsOlderThanWithQuerier(ctx context.Context, q querier, cutoff time.Time) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM embedding_cache WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old cached vectors: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (s *SQLiteStorage) DeleteCachedVectorsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return s.deleteCachedVectorsOlderThanWithQuerier(ctx, s.querier(), cutoff)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{
		ContentCounts:   make(map[types.ContentType]int),
		EmbeddingCounts: make(map[string]int),
		Dimensions:      make(map[string]int),
		BuildMode:       BuildMode,
	}

	rows, err := q.QueryContext(ctx, "SELECT type, COUNT(*) FROM content_items GROUP BY type")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.ContentCounts[types.ContentType(typ)] = n
		status.ContentTotal += n
	}
	_ = rows.Close()

	rows, err = q.QueryContext(ctx, "SELECT model, MAX(dimension), COUNT(*), MAX(created_at) FROM embeddings GROUP BY model")
	if err != nil {
		return nil, err
	}
	var newest int64
	for rows.Next() {
		var model string
		var dim, n int
		var last int64
		if err := rows.Scan(&model, &dim, &n, &last); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.EmbeddingCounts[model] = n
		status.Dimensions[model] = dim
		status.EmbeddingsTotal += n
		if last > newest {
			newest = last
		}
	}
	_ = rows.Close()
	if newest > 0 {
		status.LastEmbeddedAt = time.Unix(0, newest)
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_cache").Scan(&status.CachedVectors); err != nil {
		return nil, err
	}

	version, err := currentSchemaVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Row scanning

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContent(row rowScanner) (*types.ContentItem, error) {
	var typ, id, text, metadata string
	if err := row.Scan(&typ, &id, &text, &metadata); err != nil {
		return nil, err
	}
	md, err := decodeMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("content %s/%s: %w", typ, id, err)
	}
	return &types.ContentItem{
		ID:       id,
		Type:     types.ContentType(typ),
		Text:     text,
		Metadata: md,
	}, nil
}

func scanEmbedding(row rowScanner) (*types.EmbeddingRecord, error) {
	var (
		rec        types.EmbeddingRecord
		entityType string
		blob       []byte
		vectorJSON sql.NullString
		content    sql.NullString
		createdAt  int64
	)
	if err := row.Scan(&entityType, &rec.EntityID, &rec.Model, &rec.Dimension,
		&blob, &vectorJSON, &content, &rec.ContentHash, &createdAt); err != nil {
		return nil, err
	}

	var jsonText *string
	if vectorJSON.Valid {
		jsonText = &vectorJSON.String
	}
	vector, err := decodeStoredVector(blob, jsonText, rec.Dimension)
	if err != nil {
		return nil, fmt.Errorf("embedding %s/%s: %w", entityType, rec.EntityID, err)
	}

	rec.EntityType = types.ContentType(entityType)
	rec.Vector = vector
	rec.Content = content.String
	rec.CreatedAt = time.Unix(0, createdAt)
	return &rec, nil
}

func encodeMetadata(md map[string]any) (string, error) {
	if len(md) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("%w: metadata: %v", types.ErrInvalidInput, err)
	}
	return string(data), nil
}

func decodeMetadata(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return md, nil
}

// Transaction implementations use the transaction's querier

func (t *sqliteTx) UpsertContent(ctx context.Context, item *types.ContentItem) error {
	return t.storage.upsertContentWithQuerier(ctx, t.querier(), item)
}

func (t *sqliteTx) GetContent(ctx context.Context, typ types.ContentType, id string) (*types.ContentItem, error) {
	return t.storage.getContentWithQuerier(ctx, t.querier(), typ, id)
}

func (t *sqliteTx) ListContent(ctx context.Context, contentTypes []types.ContentType) ([]*types.ContentItem, error) {
	return t.storage.searchContentWithQuerier(ctx, t.querier(), types.ContentQuery{Types: contentTypes})
}

func (t *sqliteTx) SearchContent(ctx context.Context, q types.ContentQuery) ([]*types.ContentItem, error) {
	return t.storage.searchContentWithQuerier(ctx, t.querier(), q)
}

func (t *sqliteTx) DeleteContent(ctx context.Context, typ types.ContentType, id string) error {
	return t.storage.deleteContentWithQuerier(ctx, t.querier(), typ, id)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, rec *types.EmbeddingRecord) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), rec)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, typ types.ContentType, id, model string) (*types.EmbeddingRecord, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), typ, id, model)
}

func (t *sqliteTx) ListEmbeddings(ctx context.Context, model string, contentTypes []types.ContentType) ([]*types.EmbeddingRecord, error) {
	return t.storage.listEmbeddingsWithQuerier(ctx, t.querier(), model, contentTypes)
}

func (t *sqliteTx) DeleteEmbedding(ctx context.Context, typ types.ContentType, id, model string) error {
	return t.storage.deleteEmbeddingWithQuerier(ctx, t.querier(), typ, id, model)
}

func (t *sqliteTx) DeleteEmbeddingsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return t.storage.deleteEmbeddingsOlderThanWithQuerier(ctx, t.querier(), cutoff)
}

func (t *sqliteTx) GetCachedVector(ctx context.Context, hash, model string) (*embedder.CachedVector, error) {
	return t.storage.getCachedVectorWithQuerier(ctx, t.querier(), hash, model)
}

func (t *sqliteTx) PutCachedVector(ctx context.Context, v embedder.CachedVector) error {
	return t.storage.putCachedVectorWithQuerier(ctx, t.querier(), v)
}

func (t *sqliteTx) DeleteCachedVectorsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return t.storage.deleteCachedVectorsOlderThanWithQuerier(ctx, t.querier(), cutoff)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
