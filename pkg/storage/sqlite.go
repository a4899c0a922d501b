package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tb0hdan/reptor-mcp/pkg/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when an execution does not exist.
var ErrNotFound = errors.New("execution not found")

var memoryDatabases atomic.Int64

type SQLiteStorage struct {
	db *gorm.DB
}

type Config struct {
	// DatabasePath is the sqlite file. Empty keeps the log in memory for the lifetime of
	// the storage.
	DatabasePath string
	Debug        bool
}

func NewSQLiteStorage(cfg Config) (*SQLiteStorage, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	dsn := cfg.DatabasePath
	inMemory := dsn == ""
	if inMemory {
		dsn = fmt.Sprintf("file:reptor-mcp-%d?mode=memory&cache=shared", memoryDatabases.Add(1))
	}

	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if inMemory {
		sqlDB, err := database.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database: %w", err)
		}
		// The shared-cache database lives as long as one connection stays open.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	// Auto-migrate schema
	if err := database.AutoMigrate(&models.ToolExecution{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStorage{db: database}, nil
}

func (s *SQLiteStorage) CreateToolExecution(ctx context.Context, exec *models.ToolExecution) error {
	return s.db.WithContext(ctx).Create(exec).Error
}

func (s *SQLiteStorage) GetToolExecution(ctx context.Context, id uint) (*models.ToolExecution, error) {
	var exec models.ToolExecution
	err := s.db.WithContext(ctx).First(&exec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

func (s *SQLiteStorage) ListToolExecutions(ctx context.Context, filter Filter) ([]models.ToolExecution, int64, error) {
	var executions []models.ToolExecution
	var total int64

	scoped := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&models.ToolExecution{})
		if filter.ToolName != "" {
			query = query.Where("tool_name = ?", filter.ToolName)
		}
		if filter.SessionID != "" {
			query = query.Where("session_id = ?", filter.SessionID)
		}
		if filter.Kind != "" {
			query = query.Where("kind = ?", filter.Kind)
		}
		return query
	}

	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := scoped().Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	err := query.Find(&executions).Error
	return executions, total, err
}

func (s *SQLiteStorage) DeleteToolExecution(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.ToolExecution{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStorage) DeleteAllToolExecutions(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&models.ToolExecution{}).Error
}

func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
