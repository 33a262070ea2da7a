//go:build integration

package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupTestContainer(t *testing.T) (*PostgresStore, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("host=%s user=test password=test dbname=testdb port=%s sslmode=disable", host, port.Port())
	db, err := OpenPostgres(ctx, dsn, 2, 5)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open database: %v", err)
	}

	store := NewPostgresStore(db, zap.NewNop())
	if err := store.AutoMigrate(ctx); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		container.Terminate(ctx)
	}
	return store, cleanup
}

func TestPostgresStore(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("PutAndGet", func(t *testing.T) {
		if err := store.Put(ctx, newJob("JOB_1", base)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := store.Get(ctx, "JOB_1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Price != 60 || got.CustomerName != "Walk-in" {
			t.Errorf("unexpected job %+v", got)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		if _, err := store.Get(ctx, "JOB_MISSING"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PutReplaces", func(t *testing.T) {
		job := newJob("JOB_1", base)
		job.Copies = 8
		if err := store.Put(ctx, job); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, _ := store.Get(ctx, "JOB_1")
		if got.Copies != 8 {
			t.Errorf("expected copies 8, got %d", got.Copies)
		}
	})

	t.Run("ListAndCount", func(t *testing.T) {
		store.Put(ctx, newJob("JOB_2", base.Add(time.Hour)))
		store.Put(ctx, newJob("JOB_3", base.Add(2*time.Hour)))

		n, err := store.Count(ctx)
		if err != nil || n != 3 {
			t.Fatalf("expected 3 jobs, got %d (%v)", n, err)
		}

		list, err := store.List(ctx, 2)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 2 || list[0].JobID != "JOB_3" || list[1].JobID != "JOB_2" {
			t.Errorf("expected newest first, got %+v", list)
		}
	})
}
