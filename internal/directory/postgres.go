package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "matchflow/pkg/domain"
	"matchflow/pkg/platform/sentinel"
)

// PostgresStore reads the directory tables owned by the back office.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Candidate(ctx context.Context, candidateID id.CandidateID) (*Candidate, error) {
	c := Candidate{ID: candidateID}
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name, assignee_ref FROM candidates WHERE id = $1`, candidateID.String(),
	).Scan(&c.DisplayName, &c.AssigneeRef)
	if err != nil {
		return nil, notFoundOr(err, "find candidate")
	}
	return &c, nil
}

func (s *PostgresStore) Job(ctx context.Context, jobID id.JobID) (*Job, error) {
	var (
		j         = Job{ID: jobID}
		companyID uuid.UUID
		storeIDs  []string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT title, company_id, store_ids FROM jobs WHERE id = $1`, jobID.String(),
	).Scan(&j.Title, &companyID, pq.Array(&storeIDs))
	if err != nil {
		return nil, notFoundOr(err, "find job")
	}
	j.CompanyID = id.CompanyID(companyID)
	for _, raw := range storeIDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse store id: %w", err)
		}
		j.StoreIDs = append(j.StoreIDs, id.StoreID(parsed))
	}
	return &j, nil
}

func (s *PostgresStore) Company(ctx context.Context, companyID id.CompanyID) (*Company, error) {
	c := Company{ID: companyID}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, assignee_ref FROM companies WHERE id = $1`, companyID.String(),
	).Scan(&c.Name, &c.AssigneeRef)
	if err != nil {
		return nil, notFoundOr(err, "find company")
	}
	return &c, nil
}

// Upsert helpers seed the directory in development and integration tests.

func (s *PostgresStore) PutCompany(ctx context.Context, c Company) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, assignee_ref) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, assignee_ref = EXCLUDED.assignee_ref
	`, c.ID.String(), c.Name, c.AssigneeRef)
	if err != nil {
		return fmt.Errorf("put company: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutCandidate(ctx context.Context, c Candidate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (id, display_name, assignee_ref) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, assignee_ref = EXCLUDED.assignee_ref
	`, c.ID.String(), c.DisplayName, c.AssigneeRef)
	if err != nil {
		return fmt.Errorf("put candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutJob(ctx context.Context, j Job) error {
	stores := make([]string, len(j.StoreIDs))
	for i, st := range j.StoreIDs {
		stores[i] = st.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, title, company_id, store_ids) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, company_id = EXCLUDED.company_id, store_ids = EXCLUDED.store_ids
	`, j.ID.String(), j.Title, j.CompanyID.String(), pq.Array(stores))
	if err != nil {
		return fmt.Errorf("put job: %w", err)
	}
	return nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
