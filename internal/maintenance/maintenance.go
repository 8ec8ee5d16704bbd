// Package maintenance runs the scheduled database upkeep job: a WAL
// checkpoint plus query-planner statistics refresh, so week-long histories
// do not accumulate an unbounded WAL file.
package maintenance

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the job daily at 07:00 local time.
const DefaultSchedule = "0 7 * * *"

// Service owns the cron scheduler for database upkeep.
type Service struct {
	db      *sql.DB
	cron    *cron.Cron
	entryID cron.EntryID

	runMu sync.Mutex // serializes RunNow against scheduled firings
}

// NewService creates the maintenance service. An invalid schedule is logged
// and the job simply never fires; RunNow still works.
func NewService(db *sql.DB, schedule string) *Service {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	s := &Service{db: db, cron: cron.New()}

	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunNow(); err != nil {
			log.Printf("[maintenance] scheduled run failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("[maintenance] invalid cron expression %q: %v", schedule, err)
	} else {
		s.entryID = entryID
	}

	return s
}

// Start launches the scheduler.
func (s *Service) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. A run already in progress finishes.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunNow executes one maintenance pass: truncating WAL checkpoint, then
// PRAGMA optimize.
func (s *Service) RunNow() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("maintenance: wal checkpoint: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA optimize"); err != nil {
		return fmt.Errorf("maintenance: optimize: %w", err)
	}
	log.Printf("[maintenance] database maintenance completed")
	return nil
}

// ValidateSchedule reports whether expr parses as a standard 5-field cron
// expression. Used by the config layer before the service is built.
func ValidateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("maintenance: invalid schedule %q: %w", expr, err)
	}
	return nil
}
