// Package jobs persists the record of every print job so sheets can be listed,
// inspected and reprinted later.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no job has the requested id
var ErrNotFound = errors.New("job not found")

// StatusCompleted marks a job whose sheet was produced
const StatusCompleted = "completed"

// Job is the metadata recorded for one upload
type Job struct {
	JobID           string    `json:"job_id" gorm:"column:job_id;primaryKey;size:64"`
	Preset          string    `json:"preset" gorm:"column:preset;size:32"`
	BGColor         string    `json:"bg_color" gorm:"column:bg_color;size:16"`
	Copies          int       `json:"copies" gorm:"column:copies"`
	CreatedAt       time.Time `json:"created_at" gorm:"column:created_at;index"`
	OriginalPath    string    `json:"original_path" gorm:"column:original_path"`
	TransparentPath string    `json:"transparent_path" gorm:"column:transparent_path"`
	FinalPath       string    `json:"final_path" gorm:"column:final_path"`
	Status          string    `json:"status" gorm:"column:status;size:16"`
	JobNo           int64     `json:"job_no" gorm:"column:job_no"`
	Price           int       `json:"price" gorm:"column:price"`
	CustomerName    string    `json:"customer_name" gorm:"column:customer_name;size:128"`
}

// TableName overrides the default table name.
func (Job) TableName() string {
	return "jobs"
}

// Store keeps job records
type Store interface {
	// Put inserts or replaces the job with the same id
	Put(ctx context.Context, job *Job) error
	// Get returns ErrNotFound when the id is unknown
	Get(ctx context.Context, jobID string) (*Job, error)
	// List returns up to limit jobs, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*Job, error)
	Count(ctx context.Context) (int64, error)
}

// NewJobID returns an id like JOB_20240131_154500_a1b2c3
func NewJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("JOB_%s_%s", now.Format("20060102_150405"), suffix)
}
