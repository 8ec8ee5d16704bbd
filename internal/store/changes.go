package store

import (
	"database/sql"
	"fmt"

	"github.com/nodewatch/nodewatch/internal/model"
)

// AddStatusChange appends a status-change event and returns its assigned id.
func (s *Store) AddStatusChange(c *model.StatusChange) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO status_changes (node_id, from_status, to_status, changed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?)`,
		c.NodeID, string(c.From), string(c.To), formatTime(c.ChangedAt), nullInt64(c.DurationMs),
	)
	if err != nil {
		return 0, fmt.Errorf("store: add status change for node %d: %w", c.NodeID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: add status change for node %d: last insert id: %w", c.NodeID, err)
	}
	c.ID = id
	return id, nil
}

// ListStatusChanges returns a node's status changes newest first. A limit of
// zero or less returns the full history.
func (s *Store) ListStatusChanges(nodeID int64, limit int) ([]model.StatusChange, error) {
	q := `SELECT id, node_id, from_status, to_status, changed_at, duration_ms
		FROM status_changes WHERE node_id = ?
		ORDER BY changed_at DESC, id DESC`
	args := []any{nodeID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list status changes for node %d: %w", nodeID, err)
	}
	defer rows.Close()

	var result []model.StatusChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list status changes for node %d: %w", nodeID, err)
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// listStatusChangesAsc returns changes oldest first, bounded above by end.
// Used by the uptime timeline computation.
func (s *Store) listStatusChangesAsc(nodeID int64, end string) ([]model.StatusChange, error) {
	rows, err := s.db.Query(`
		SELECT id, node_id, from_status, to_status, changed_at, duration_ms
		FROM status_changes WHERE node_id = ? AND changed_at <= ?
		ORDER BY changed_at ASC, id ASC`, nodeID, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.StatusChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func scanChange(row rowScanner) (*model.StatusChange, error) {
	var (
		c          model.StatusChange
		from, to   string
		changedAt  string
		durationMs sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.NodeID, &from, &to, &changedAt, &durationMs); err != nil {
		return nil, err
	}
	at, err := parseTime(changedAt)
	if err != nil {
		return nil, err
	}
	c.From = model.ParseStatus(from)
	c.To = model.ParseStatus(to)
	c.ChangedAt = at
	if durationMs.Valid {
		v := durationMs.Int64
		c.DurationMs = &v
	}
	return &c, nil
}
