package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"grid_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the SQLite round journal.
// Rows are append-only and never read back for trading decisions.
type Storage struct {
	db *gorm.DB
}

var _ domain.Journal = (*Storage)(nil)

// NewStorage opens (or creates) the journal at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	// Auto Migration
	if err := db.AutoMigrate(&domain.RoundRecord{}, &domain.OrderAction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Journal
// ======================================================================================

// SaveRound appends a round record.
func (s *Storage) SaveRound(rec *domain.RoundRecord) error {
	return s.db.Create(rec).Error
}

// SaveOrderActions appends order actions in one batch.
func (s *Storage) SaveOrderActions(actions []domain.OrderAction) error {
	if len(actions) == 0 {
		return nil
	}
	return s.db.CreateInBatches(&actions, 100).Error
}

// ObserveRound writes the round and its actions in one transaction.
// Failures are logged; the journal never stops the loop.
func (s *Storage) ObserveRound(sum *domain.RoundSummary) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txs := &Storage{db: tx}
		if err := txs.SaveRound(sum.Record()); err != nil {
			return err
		}
		return txs.SaveOrderActions(sum.Actions)
	})
	if err != nil {
		slog.Warn("JOURNAL_WRITE_FAILED",
			slog.String("symbol", sum.Symbol),
			slog.Time("started_at", sum.StartedAt),
			slog.Any("error", err),
		)
	}
}

// RecentRounds returns the newest rounds first.
func (s *Storage) RecentRounds(limit int) ([]domain.RoundRecord, error) {
	var rounds []domain.RoundRecord
	err := s.db.Order("started_at desc, id desc").Limit(limit).Find(&rounds).Error
	return rounds, err
}

// ActionsByClientOrderID returns every action recorded for a client order id, oldest first.
func (s *Storage) ActionsByClientOrderID(clientOrderID string) ([]domain.OrderAction, error) {
	var actions []domain.OrderAction
	err := s.db.Where("client_order_id = ?", clientOrderID).Order("id asc").Find(&actions).Error
	return actions, err
}

// CountActions returns the number of actions of a kind.
func (s *Storage) CountActions(kind domain.ActionKind) (int64, error) {
	var n int64
	err := s.db.Model(&domain.OrderAction{}).Where("kind = ?", kind).Count(&n).Error
	return n, err
}
