// Package store adapts a SQL database into the ProfileStore interface the
// core consumes. Candidate and job records are stored as JSON documents in
// narrow tables; normalization into canonical structs happens here, at the
// edge.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// SQLProfileStore reads candidate and job records from two JSON-document
// tables: candidates(id, data, active) and jobs(id, data, active).
type SQLProfileStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLProfileStore wraps an open database handle.
func NewSQLProfileStore(db *sql.DB) *SQLProfileStore {
	return &SQLProfileStore{
		db:  db,
		log: logger.GetLogger("matchcore.store"),
	}
}

// GetCandidate loads one candidate profile by ID.
func (s *SQLProfileStore) GetCandidate(ctx context.Context, id string) (model.CandidateProfile, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM candidates WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CandidateProfile{}, matcherr.NotFound("candidate %s not found", id)
	}
	if err != nil {
		return model.CandidateProfile{}, matcherr.Transient(fmt.Errorf("query candidate: %w", err))
	}

	var profile model.CandidateProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return model.CandidateProfile{}, matcherr.Internal(fmt.Errorf("decode candidate %s: %w", id, err))
	}
	if profile.ID == "" {
		profile.ID = id
	}
	return profile, nil
}

// GetJob loads one job posting by ID.
func (s *SQLProfileStore) GetJob(ctx context.Context, id string) (model.JobPosting, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM jobs WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JobPosting{}, matcherr.NotFound("job %s not found", id)
	}
	if err != nil {
		return model.JobPosting{}, matcherr.Transient(fmt.Errorf("query job: %w", err))
	}

	var posting model.JobPosting
	if err := json.Unmarshal(raw, &posting); err != nil {
		return model.JobPosting{}, matcherr.Internal(fmt.Errorf("decode job %s: %w", id, err))
	}
	if posting.ID == "" {
		posting.ID = id
	}
	return posting, nil
}

// ListActiveJobs returns every posting flagged active.
func (s *SQLProfileStore) ListActiveJobs(ctx context.Context) ([]model.JobPosting, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data FROM jobs WHERE active = 1 ORDER BY id")
	if err != nil {
		return nil, matcherr.Transient(fmt.Errorf("list jobs: %w", err))
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, matcherr.Transient(fmt.Errorf("scan job row: %w", err))
		}

		var posting model.JobPosting
		if err := json.Unmarshal(raw, &posting); err != nil {
			// One bad row should not hide the rest of the listing.
			s.log.Warn().Str("job_id", id).Err(err).Msg("skipping undecodable job row")
			continue
		}
		if posting.ID == "" {
			posting.ID = id
		}
		jobs = append(jobs, posting)
	}
	if err := rows.Err(); err != nil {
		return nil, matcherr.Transient(fmt.Errorf("iterate jobs: %w", err))
	}
	return jobs, nil
}

// ListActiveCandidates returns every candidate flagged active.
func (s *SQLProfileStore) ListActiveCandidates(ctx context.Context) ([]model.CandidateProfile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data FROM candidates WHERE active = 1 ORDER BY id")
	if err != nil {
		return nil, matcherr.Transient(fmt.Errorf("list candidates: %w", err))
	}
	defer rows.Close()

	var candidates []model.CandidateProfile
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, matcherr.Transient(fmt.Errorf("scan candidate row: %w", err))
		}

		var profile model.CandidateProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			s.log.Warn().Str("candidate_id", id).Err(err).Msg("skipping undecodable candidate row")
			continue
		}
		if profile.ID == "" {
			profile.ID = id
		}
		candidates = append(candidates, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, matcherr.Transient(fmt.Errorf("iterate candidates: %w", err))
	}
	return candidates, nil
}
