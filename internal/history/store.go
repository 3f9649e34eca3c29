package history

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/shelfsync/internal/apply"
)

// Run is one recorded sync pass: its mode, counts, and artifact location.
type Run struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	Mode             string    `json:"mode"`
	StartedAt        time.Time `json:"started_at"`
	Matched          int       `json:"matched"`
	Unmatched        int       `json:"unmatched"`
	Conflicts        int       `json:"conflicts"`
	LibrariesTouched string    `json:"libraries_touched"`
	LibrariesFailed  string    `json:"libraries_failed"`
	ArtifactPath     string    `json:"artifact_path"`

	Actions []AppliedAction `gorm:"foreignKey:RunID" json:"actions,omitempty"`
	Backups []Backup        `gorm:"foreignKey:RunID" json:"backups,omitempty"`
}

// AppliedAction is one executed field write, kept for the audit trail.
type AppliedAction struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	RunID    uint   `gorm:"index" json:"run_id"`
	SourceID string `json:"source_id"`
	Library  string `json:"library"`
	EntryID  int64  `json:"entry_id"`
	Field    string `json:"field"`
	Previous string `json:"previous"`
	NewValue string `json:"new_value"`
}

// Backup records one metadata store backup taken during a run.
type Backup struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	RunID   uint   `gorm:"index" json:"run_id"`
	Library string `json:"library"`
	Path    string `json:"path"`
}

// Store persists sync run history in a local SQLite database.
type Store struct {
	DB *gorm.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := db.AutoMigrate(&Run{}, &AppliedAction{}, &Backup{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun saves the outcome of an apply pass along with its writes and
// backups, and returns the persisted run.
func (s *Store) RecordRun(report *apply.Report, artifactPath string) (*Run, error) {
	run := &Run{
		Mode:             string(report.Mode),
		StartedAt:        report.StartedAt,
		Matched:          len(report.Plan.Actions),
		Unmatched:        len(report.Plan.Unmatched),
		Conflicts:        len(report.Plan.Conflicts),
		LibrariesTouched: strings.Join(report.Plan.Libraries(), ","),
		LibrariesFailed:  strings.Join(report.Failed(), ","),
		ArtifactPath:     artifactPath,
	}

	for _, result := range report.Libraries {
		if result.BackupPath != "" {
			run.Backups = append(run.Backups, Backup{Library: result.Library, Path: result.BackupPath})
		}
		for _, applied := range result.Applied {
			for field, value := range applied.Written {
				run.Actions = append(run.Actions, AppliedAction{
					SourceID: applied.Action.SourceID,
					Library:  result.Library,
					EntryID:  applied.Action.EntryID,
					Field:    field,
					Previous: applied.Previous[field],
					NewValue: value,
				})
			}
		}
	}

	if err := s.DB.Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// GetRuns returns recorded runs, newest first.
func (s *Store) GetRuns(limit int) ([]Run, error) {
	var runs []Run
	query := s.DB.Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&runs).Error
	return runs, err
}

// GetRun returns one run with its actions and backups.
func (s *Store) GetRun(id uint) (*Run, error) {
	var run Run
	err := s.DB.Preload("Actions").Preload("Backups").First(&run, id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
