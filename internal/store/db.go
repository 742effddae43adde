package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultHistoryCap bounds the entries kept per task when none is configured.
const DefaultHistoryCap = 20

// History is an append-only, newest-first, capped list of predictions per task.
type History interface {
	Append(entry *HistoryEntry) error
	List(task string, limit int) ([]HistoryEntry, error)
	Clear(task string) error
	Close() error
}

var (
	_ History = (*Database)(nil)
	_ History = (*FileHistory)(nil)
)

// Database wraps the GORM DB handle and keeps prediction history in SQLite.
type Database struct {
	gorm       *gorm.DB
	maxEntries int
	mu         sync.Mutex
}

// Open initializes the SQLite-backed history at the provided path.
func Open(path string, silent bool, maxEntries int) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&HistoryEntry{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_entries_task_id ON history_entries(task, id)").Error; err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultHistoryCap
	}
	return &Database{gorm: db, maxEntries: maxEntries}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append records an entry and trims the task's history to the cap.
func (d *Database) Append(entry *HistoryEntry) error {
	if entry == nil {
		return errors.New("history entry is nil")
	}
	if err := prepareEntry(entry); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		keep := tx.Model(&HistoryEntry{}).
			Select("id").
			Where("task = ?", entry.Task).
			Order("id DESC").
			Limit(d.maxEntries)
		if err := tx.Where("task = ? AND id NOT IN (?)", entry.Task, keep).Delete(&HistoryEntry{}).Error; err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
		return nil
	})
}

// List returns up to limit entries for task, newest first. A non-positive
// limit returns the whole capped history.
func (d *Database) List(task string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > d.maxEntries {
		limit = d.maxEntries
	}
	var entries []HistoryEntry
	err := d.gorm.Where("task = ?", strings.TrimSpace(task)).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// Clear removes every entry for task.
func (d *Database) Clear(task string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Where("task = ?", strings.TrimSpace(task)).Delete(&HistoryEntry{}).Error; err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func prepareEntry(entry *HistoryEntry) error {
	entry.Task = strings.TrimSpace(entry.Task)
	if entry.Task == "" {
		return errors.New("history entry task is required")
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.InputJSON == "" {
		entry.InputJSON = "{}"
	}
	return nil
}
