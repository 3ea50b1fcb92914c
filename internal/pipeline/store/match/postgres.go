package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	"matchflow/pkg/platform/sentinel"
	txcontext "matchflow/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists matches in PostgreSQL. The lifecycle write is a
// conditional UPDATE on (id, version) plus the timeline INSERT in one
// transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const matchColumns = `id, candidate_id, job_id, company_id, store_ids, status, score,
	start_date, end_date, version, creation_notes, created_at, updated_at, created_by`

func (s *PostgresStore) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		m.ID.String(),
		m.CandidateID.String(),
		m.JobID.String(),
		nullableUUID(uuid.UUID(m.CompanyID)),
		pq.Array(storeIDStrings(m.StoreIDs)),
		string(m.Status),
		m.Score,
		m.StartDate,
		m.EndDate,
		m.Version,
		m.CreationNotes,
		m.CreatedAt,
		m.UpdatedAt,
		nullableUUID(uuid.UUID(m.CreatedBy)),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// snapshotRead runs fn in a read-only REPEATABLE READ transaction so the
// match rows and their timelines come from the same snapshot.
func (s *PostgresStore) snapshotRead(ctx context.Context, fn func(ctx context.Context, exec dbExecutor) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return txcontext.RunWithOptions(ctx, s.db, opts, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, matchID id.MatchID) (*models.Match, error) {
	var m *models.Match
	err := s.snapshotRead(ctx, func(ctx context.Context, exec dbExecutor) error {
		row := exec.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, matchID.String())
		found, err := scanMatch(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("find match: %w", err)
		}
		timelines, err := s.loadTimelines(ctx, exec, []string{found.ID.String()})
		if err != nil {
			return err
		}
		found.Timeline = timelineOrEmpty(timelines[found.ID])
		m = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns matches passing filter, most recently updated first.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Match, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.Class != "" {
		names := make([]string, 0)
		for _, st := range filter.Class.Statuses() {
			names = append(names, string(st))
		}
		where = append(where, "status = ANY("+arg(pq.Array(names))+")")
	}
	if !filter.CandidateID.IsNil() {
		where = append(where, "candidate_id = "+arg(filter.CandidateID.String()))
	}
	if !filter.JobID.IsNil() {
		where = append(where, "job_id = "+arg(filter.JobID.String()))
	}
	if !filter.CompanyID.IsNil() {
		where = append(where, "company_id = "+arg(filter.CompanyID.String()))
	}

	query := `SELECT ` + matchColumns + ` FROM matches`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	out := []*models.Match{}
	err := s.snapshotRead(ctx, func(ctx context.Context, exec dbExecutor) error {
		matches, err := s.queryMatches(ctx, exec, query, args)
		if err != nil || len(matches) == 0 {
			return err
		}
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID.String()
		}
		timelines, err := s.loadTimelines(ctx, exec, ids)
		if err != nil {
			return err
		}
		for _, m := range matches {
			m.Timeline = timelineOrEmpty(timelines[m.ID])
		}
		out = matches
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) queryMatches(ctx context.Context, exec dbExecutor, query string, args []any) ([]*models.Match, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

// CommitTransition writes m's lifecycle fields and appends entry in one
// transaction, conditional on the stored version. A lost race returns
// sentinel.ErrConflict and writes nothing.
func (s *PostgresStore) CommitTransition(ctx context.Context, m *models.Match, expectedVersion int64, entry models.TimelineEntry) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE matches
			SET status = $2, start_date = $3, end_date = $4, updated_at = GREATEST(updated_at, $5), version = version + 1
			WHERE id = $1 AND version = $6
		`, m.ID.String(), string(m.Status), m.StartDate, m.EndDate, m.UpdatedAt, expectedVersion)
		if err != nil {
			return fmt.Errorf("update match status: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update match status rows affected: %w", err)
		}
		if rows == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM matches WHERE id = $1)`, m.ID.String()).Scan(&exists); err != nil {
				return fmt.Errorf("check match exists: %w", err)
			}
			if !exists {
				return sentinel.ErrNotFound
			}
			return sentinel.ErrConflict
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_timeline
				(id, match_id, status, previous_status, correction, occurred_at, notes, created_by, scheduled_event_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			entry.ID.String(),
			m.ID.String(),
			string(entry.Status),
			string(entry.PreviousStatus),
			entry.Correction,
			entry.Timestamp,
			entry.Notes,
			nullableUUID(uuid.UUID(entry.CreatedBy)),
			entry.ScheduledEventDate,
		)
		if err != nil {
			return fmt.Errorf("append timeline entry: %w", err)
		}
		return nil
	})
}

// UpdateScore sets the score without touching the lifecycle or the version.
func (s *PostgresStore) UpdateScore(ctx context.Context, matchID id.MatchID, score int, updatedAt time.Time) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE matches
		SET score = $2, updated_at = GREATEST(updated_at, $3)
		WHERE id = $1
	`, matchID.String(), score, updatedAt)
	if err != nil {
		return fmt.Errorf("update match score: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match score rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) loadTimelines(ctx context.Context, exec dbExecutor, matchIDs []string) (map[id.MatchID]models.Timeline, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, match_id, status, previous_status, correction, occurred_at, notes, created_by, scheduled_event_date
		FROM match_timeline
		WHERE match_id = ANY($1)
		ORDER BY match_id, seq
	`, pq.Array(matchIDs))
	if err != nil {
		return nil, fmt.Errorf("load timelines: %w", err)
	}
	defer rows.Close()

	out := make(map[id.MatchID]models.Timeline, len(matchIDs))
	for rows.Next() {
		var (
			entry     models.TimelineEntry
			entryID   uuid.UUID
			matchID   uuid.UUID
			st        string
			prev      string
			createdBy uuid.NullUUID
			scheduled sql.NullTime
		)
		if err := rows.Scan(&entryID, &matchID, &st, &prev, &entry.Correction,
			&entry.Timestamp, &entry.Notes, &createdBy, &scheduled); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		entry.ID = id.EntryID(entryID)
		entry.Status = status.Status(st)
		entry.PreviousStatus = status.Status(prev)
		entry.Timestamp = entry.Timestamp.UTC()
		if createdBy.Valid {
			entry.CreatedBy = id.UserID(createdBy.UUID)
		}
		if scheduled.Valid {
			t := scheduled.Time.UTC()
			entry.ScheduledEventDate = &t
		}
		key := id.MatchID(matchID)
		out[key] = append(out[key], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline entries: %w", err)
	}
	return out, nil
}

type matchRow interface {
	Scan(dest ...any) error
}

func scanMatch(row matchRow) (*models.Match, error) {
	var (
		m           models.Match
		matchID     uuid.UUID
		candidateID uuid.UUID
		jobID       uuid.UUID
		companyID   uuid.NullUUID
		storeIDs    []string
		st          string
		startDate   sql.NullTime
		endDate     sql.NullTime
		createdBy   uuid.NullUUID
	)
	if err := row.Scan(&matchID, &candidateID, &jobID, &companyID, pq.Array(&storeIDs), &st, &m.Score,
		&startDate, &endDate, &m.Version, &m.CreationNotes, &m.CreatedAt, &m.UpdatedAt, &createdBy); err != nil {
		return nil, err
	}
	m.ID = id.MatchID(matchID)
	m.CandidateID = id.CandidateID(candidateID)
	m.JobID = id.JobID(jobID)
	if companyID.Valid {
		m.CompanyID = id.CompanyID(companyID.UUID)
	}
	for _, raw := range storeIDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse store id: %w", err)
		}
		m.StoreIDs = append(m.StoreIDs, id.StoreID(parsed))
	}
	m.Status = status.Status(st)
	if startDate.Valid {
		t := startDate.Time.UTC()
		m.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time.UTC()
		m.EndDate = &t
	}
	if createdBy.Valid {
		m.CreatedBy = id.UserID(createdBy.UUID)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func timelineOrEmpty(t models.Timeline) models.Timeline {
	if t == nil {
		return models.Timeline{}
	}
	return t
}

func storeIDStrings(ids []id.StoreID) []string {
	out := make([]string, len(ids))
	for i, s := range ids {
		out[i] = s.String()
	}
	return out
}

func nullableUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
