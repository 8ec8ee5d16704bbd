package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nodewatch/nodewatch/internal/model"
)

// AddProbeSample appends a probe sample and returns its assigned id.
func (s *Store) AddProbeSample(p *model.ProbeSample) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO probe_samples (node_id, timestamp, status, response_time, details)
		VALUES (?, ?, ?, ?, ?)`,
		p.NodeID, formatTime(p.At), string(p.Status),
		nullInt64(p.ResponseTimeMs), nullString(p.Detail),
	)
	if err != nil {
		return 0, fmt.Errorf("store: add sample for node %d: %w", p.NodeID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: add sample for node %d: last insert id: %w", p.NodeID, err)
	}
	p.ID = id
	return id, nil
}

// LatestProbeSample returns the most recent sample for a node, or nil when
// the node has never been sampled.
func (s *Store) LatestProbeSample(nodeID int64) (*model.ProbeSample, error) {
	row := s.db.QueryRow(`
		SELECT id, node_id, timestamp, status, response_time, details
		FROM probe_samples WHERE node_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1`, nodeID)

	p, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest sample for node %d: %w", nodeID, err)
	}
	return p, nil
}

// FirstProbeSampleAt returns the timestamp of a node's first-ever sample, or
// nil when none exists.
func (s *Store) FirstProbeSampleAt(nodeID int64) (*time.Time, error) {
	row := s.db.QueryRow(`
		SELECT timestamp FROM probe_samples WHERE node_id = ?
		ORDER BY timestamp ASC, id ASC LIMIT 1`, nodeID)

	var ts string
	err := row.Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: first sample for node %d: %w", nodeID, err)
	}
	t, err := parseTime(ts)
	if err != nil {
		return nil, fmt.Errorf("store: first sample for node %d: %w", nodeID, err)
	}
	return &t, nil
}

func scanSample(row rowScanner) (*model.ProbeSample, error) {
	var (
		p        model.ProbeSample
		ts       string
		status   string
		respTime sql.NullInt64
		details  sql.NullString
	)
	if err := row.Scan(&p.ID, &p.NodeID, &ts, &status, &respTime, &details); err != nil {
		return nil, err
	}
	at, err := parseTime(ts)
	if err != nil {
		return nil, err
	}
	p.At = at
	p.Status = model.ParseStatus(status)
	if respTime.Valid {
		v := respTime.Int64
		p.ResponseTimeMs = &v
	}
	p.Detail = details.String
	return &p, nil
}
