package database

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"

	"github.com/politeai/tonebridge/pkg/rag"
)

const ragEntryColumns = `id, category, content,
	COALESCE(original_text, ''), COALESCE(alternative, ''), COALESCE(trigger_phrases, ''),
	COALESCE(dedupe_key, ''), COALESCE(personas, ''), COALESCE(contexts, ''),
	COALESCE(tone_levels, ''), COALESCE(sections, ''), COALESCE(yellow_labels, ''),
	COALESCE(embedding_blob, ''), enabled, created_at, updated_at`

// RagStore reads and writes rag_entries rows. It implements rag.Store.
type RagStore struct {
	db *stdsql.DB
}

func NewRagStore(db *stdsql.DB) *RagStore {
	return &RagStore{db: db}
}

// FindAllEnabled returns every enabled entry.
func (s *RagStore) FindAllEnabled(ctx context.Context) ([]rag.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ragEntryColumns+` FROM rag_entries WHERE enabled = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query enabled rag entries: %w", err)
	}
	defer rows.Close()

	var entries []rag.Entry
	for rows.Next() {
		entry, err := scanRagEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByCategory returns enabled entry counts per category.
func (s *RagStore) CountByCategory(ctx context.Context) (map[rag.Category]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(id) FROM rag_entries WHERE enabled = TRUE GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count rag entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[rag.Category]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan rag entry count: %w", err)
		}
		counts[rag.Category(category)] = count
	}
	return counts, rows.Err()
}

// FindByDedupeKey returns the entry with the given dedupe key, or nil.
func (s *RagStore) FindByDedupeKey(ctx context.Context, dedupeKey string) (*rag.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ragEntryColumns+` FROM rag_entries WHERE dedupe_key = $1`, dedupeKey)
	entry, err := scanRagEntry(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveEntry upserts one entry keyed on dedupe_key and returns its id.
func (s *RagStore) SaveEntry(ctx context.Context, entry rag.Entry) (int64, error) {
	return upsertEntry(ctx, s.db, entry)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *stdsql.Row
}

func upsertEntry(ctx context.Context, q queryRower, entry rag.Entry) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO rag_entries (
			category, content, original_text, alternative, trigger_phrases,
			dedupe_key, personas, contexts, tone_levels, sections, yellow_labels,
			embedding_blob, enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (dedupe_key) DO UPDATE SET
			content = EXCLUDED.content,
			original_text = EXCLUDED.original_text,
			alternative = EXCLUDED.alternative,
			trigger_phrases = EXCLUDED.trigger_phrases,
			personas = EXCLUDED.personas,
			contexts = EXCLUDED.contexts,
			tone_levels = EXCLUDED.tone_levels,
			sections = EXCLUDED.sections,
			yellow_labels = EXCLUDED.yellow_labels,
			embedding_blob = EXCLUDED.embedding_blob,
			enabled = EXCLUDED.enabled,
			updated_at = now()
		RETURNING id`,
		entry.Category, entry.Content,
		nullable(entry.OriginalText), nullable(entry.Alternative), nullable(entry.TriggerPhrases),
		nullable(entry.DedupeKey), nullable(entry.Personas), nullable(entry.Contexts),
		nullable(entry.ToneLevels), nullable(entry.Sections), nullable(entry.YellowLabels),
		nullable(entry.EmbeddingBlob), entry.Enabled,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save rag entry: %w", err)
	}
	return id, nil
}

// SaveBatch upserts entries in one transaction and returns the saved count.
func (s *RagStore) SaveBatch(ctx context.Context, entries []rag.Entry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rag batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range entries {
		if _, err := upsertEntry(ctx, tx, entry); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rag batch: %w", err)
	}
	return len(entries), nil
}

// DeleteAll removes every entry and returns the deleted count.
func (s *RagStore) DeleteAll(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rag_entries`)
	if err != nil {
		return 0, fmt.Errorf("delete rag entries: %w", err)
	}
	return result.RowsAffected()
}

// DeleteByCategory removes every entry of one category.
func (s *RagStore) DeleteByCategory(ctx context.Context, category rag.Category) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM rag_entries WHERE category = $1`, category)
	if err != nil {
		return 0, fmt.Errorf("delete rag entries by category: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRagEntry(row rowScanner) (rag.Entry, error) {
	var e rag.Entry
	err := row.Scan(
		&e.ID, &e.Category, &e.Content,
		&e.OriginalText, &e.Alternative, &e.TriggerPhrases,
		&e.DedupeKey, &e.Personas, &e.Contexts,
		&e.ToneLevels, &e.Sections, &e.YellowLabels,
		&e.EmbeddingBlob, &e.Enabled, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return rag.Entry{}, err
		}
		return rag.Entry{}, fmt.Errorf("scan rag entry: %w", err)
	}
	return e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
