package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres connects to dsn and checks the connection
func OpenPostgres(ctx context.Context, dsn string, maxIdle, maxOpen int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access db handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// PostgresStore keeps jobs in a Postgres table
type PostgresStore struct {
	db    *gorm.DB
	retry retrier
}

// NewPostgresStore creates a store on an open connection
func NewPostgresStore(db *gorm.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, retry: newRetrier(logger.Named("job_store"))}
}

// AutoMigrate ensures the schema is available.
func (s *PostgresStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Job{})
}

// Put implements Store
func (s *PostgresStore) Put(ctx context.Context, job *Job) error {
	return s.retry.do(ctx, "store.put", job.JobID, func() error {
		return s.db.WithContext(ctx).Save(job).Error
	})
}

// Get implements Store
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	err := s.retry.do(ctx, "store.get", jobID, func() error {
		err := s.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List implements Store
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Job, error) {
	var jobs []*Job
	err := s.retry.do(ctx, "store.list", "", func() error {
		q := s.db.WithContext(ctx).Order("created_at DESC").Order("job_id DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&jobs).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count implements Store
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.retry.do(ctx, "store.count", "", func() error {
		return s.db.WithContext(ctx).Model(&Job{}).Count(&n).Error
	})
	return n, err
}
