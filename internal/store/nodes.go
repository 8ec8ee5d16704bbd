package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nodewatch/nodewatch/internal/model"
)

// ErrNodeNotFound is returned by lookups for ids with no row.
var ErrNodeNotFound = errors.New("store: node not found")

const nodeColumns = `id, name, monitor_type, status, last_check, response_time,
	monitoring_interval, retry_interval, max_check_attempts, consecutive_failures,
	credential_id, display_order,
	http_url, http_expected_status,
	ping_host, ping_count, ping_timeout,
	tcp_host, tcp_port, tcp_timeout`

// detailColumns flattens the detail union into the type-specific column set.
// Columns for the other two types are NULL.
type detailColumns struct {
	httpURL            sql.NullString
	httpExpectedStatus sql.NullInt64
	pingHost           sql.NullString
	pingCount          sql.NullInt64
	pingTimeout        sql.NullInt64
	tcpHost            sql.NullString
	tcpPort            sql.NullInt64
	tcpTimeout         sql.NullInt64
}

func flattenDetail(d model.NodeDetail) (detailColumns, error) {
	var c detailColumns
	switch d.Type {
	case model.MonitorHTTP:
		if d.HTTP == nil {
			return c, fmt.Errorf("store: http node with nil http detail")
		}
		c.httpURL = sql.NullString{String: d.HTTP.URL, Valid: true}
		c.httpExpectedStatus = sql.NullInt64{Int64: int64(d.HTTP.ExpectedStatus), Valid: true}
	case model.MonitorPing:
		if d.Ping == nil {
			return c, fmt.Errorf("store: ping node with nil ping detail")
		}
		c.pingHost = sql.NullString{String: d.Ping.Host, Valid: true}
		c.pingCount = sql.NullInt64{Int64: int64(d.Ping.Count), Valid: true}
		c.pingTimeout = sql.NullInt64{Int64: int64(d.Ping.TimeoutSec), Valid: true}
	case model.MonitorTCP:
		if d.TCP == nil {
			return c, fmt.Errorf("store: tcp node with nil tcp detail")
		}
		c.tcpHost = sql.NullString{String: d.TCP.Host, Valid: true}
		c.tcpPort = sql.NullInt64{Int64: int64(d.TCP.Port), Valid: true}
		c.tcpTimeout = sql.NullInt64{Int64: int64(d.TCP.TimeoutSec), Valid: true}
	default:
		return c, fmt.Errorf("store: unknown monitor type %q", d.Type)
	}
	return c, nil
}

func unflattenDetail(monitorType string, c detailColumns) model.NodeDetail {
	switch model.MonitorType(monitorType) {
	case model.MonitorPing:
		return model.PingNodeDetail(c.pingHost.String, int(c.pingCount.Int64), int(c.pingTimeout.Int64))
	case model.MonitorTCP:
		return model.TCPNodeDetail(c.tcpHost.String, int(c.tcpPort.Int64), int(c.tcpTimeout.Int64))
	default:
		// http; an unknown type cannot pass the CHECK constraint.
		return model.HTTPNodeDetail(c.httpURL.String, int(c.httpExpectedStatus.Int64))
	}
}

// AddNode inserts a node and returns its assigned id.
func (s *Store) AddNode(n *model.Node) (int64, error) {
	dc, err := flattenDetail(n.Detail)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO nodes (name, monitor_type, status, last_check, response_time,
			monitoring_interval, retry_interval, max_check_attempts, consecutive_failures,
			credential_id, display_order,
			http_url, http_expected_status,
			ping_host, ping_count, ping_timeout,
			tcp_host, tcp_port, tcp_timeout)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Name, string(n.Detail.Type), string(n.Status),
		nullTimeString(n.LastCheckAt), nullInt64(n.LastResponseTimeMs),
		n.MonitoringIntervalSec, n.RetryIntervalSec, n.MaxCheckAttempts, n.ConsecutiveFailures,
		nullString(n.CredentialID), n.DisplayOrder,
		dc.httpURL, dc.httpExpectedStatus,
		dc.pingHost, dc.pingCount, dc.pingTimeout,
		dc.tcpHost, dc.tcpPort, dc.tcpTimeout,
	)
	if err != nil {
		return 0, fmt.Errorf("store: add node %q: %w", n.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: add node %q: last insert id: %w", n.Name, err)
	}
	n.ID = id
	return id, nil
}

// UpdateNode overwrites all mutable columns of an existing node.
func (s *Store) UpdateNode(n *model.Node) error {
	dc, err := flattenDetail(n.Detail)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE nodes SET name = ?, monitor_type = ?, status = ?, last_check = ?, response_time = ?,
			monitoring_interval = ?, retry_interval = ?, max_check_attempts = ?, consecutive_failures = ?,
			credential_id = ?, display_order = ?,
			http_url = ?, http_expected_status = ?,
			ping_host = ?, ping_count = ?, ping_timeout = ?,
			tcp_host = ?, tcp_port = ?, tcp_timeout = ?
		WHERE id = ?`,
		n.Name, string(n.Detail.Type), string(n.Status),
		nullTimeString(n.LastCheckAt), nullInt64(n.LastResponseTimeMs),
		n.MonitoringIntervalSec, n.RetryIntervalSec, n.MaxCheckAttempts, n.ConsecutiveFailures,
		nullString(n.CredentialID), n.DisplayOrder,
		dc.httpURL, dc.httpExpectedStatus,
		dc.pingHost, dc.pingCount, dc.pingTimeout,
		dc.tcpHost, dc.tcpPort, dc.tcpTimeout,
		n.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update node %d: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update node %d: rows affected: %w", n.ID, err)
	}
	if affected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// DeleteNode removes a node. Samples and status changes for the id are
// removed by the cascading foreign keys.
func (s *Store) DeleteNode(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM nodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete node %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete node %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// GetNode looks up a single node by id.
func (s *Store) GetNode(id int64) (*model.Node, error) {
	row := s.db.QueryRow("SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get node %d: %w", id, err)
	}
	return n, nil
}

// ListNodes returns all nodes ordered by display_order ascending, then name.
// A zero display_order (never assigned) orders as the node's id.
func (s *Store) ListNodes() ([]model.Node, error) {
	rows, err := s.db.Query("SELECT " + nodeColumns + ` FROM nodes
		ORDER BY CASE WHEN display_order = 0 THEN id ELSE display_order END ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list nodes: %w", err)
	}
	defer rows.Close()

	var result []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list nodes: %w", err)
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// DisplayOrder pairs a node id with its new UI position.
type DisplayOrder struct {
	NodeID int64
	Order  int
}

// UpdateDisplayOrders applies a reorder atomically: either every pair is
// written or none.
func (s *Store) UpdateDisplayOrders(orders []DisplayOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: reorder: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare("UPDATE nodes SET display_order = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("store: reorder: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.Exec(o.Order, o.NodeID); err != nil {
			return fmt.Errorf("store: reorder node %d: %w", o.NodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: reorder: commit: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*model.Node, error) {
	var (
		n          model.Node
		mtype      string
		status     string
		lastCheck  sql.NullString
		respTime   sql.NullInt64
		credential sql.NullString
		dc         detailColumns
	)
	err := row.Scan(
		&n.ID, &n.Name, &mtype, &status, &lastCheck, &respTime,
		&n.MonitoringIntervalSec, &n.RetryIntervalSec, &n.MaxCheckAttempts, &n.ConsecutiveFailures,
		&credential, &n.DisplayOrder,
		&dc.httpURL, &dc.httpExpectedStatus,
		&dc.pingHost, &dc.pingCount, &dc.pingTimeout,
		&dc.tcpHost, &dc.tcpPort, &dc.tcpTimeout,
	)
	if err != nil {
		return nil, err
	}

	n.Status = model.ParseStatus(status)
	n.Detail = unflattenDetail(mtype, dc)
	n.CredentialID = credential.String
	if lastCheck.Valid {
		t, err := parseTime(lastCheck.String)
		if err != nil {
			return nil, err
		}
		n.LastCheckAt = &t
	}
	if respTime.Valid {
		v := respTime.Int64
		n.LastResponseTimeMs = &v
	}
	return &n, nil
}

// --- nullable codecs ---

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
