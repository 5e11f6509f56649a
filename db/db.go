package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	var pool *pgxpool.Pool
	var err error
	maxRetries := 10
	retryDelay := time.Second * 10

	for i := 0; i < maxRetries; i++ {
		// pgxpool configs are single use, so parse on every attempt.
		var cfg *pgxpool.Config
		cfg, err = pgxpool.ParseConfig(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("unable to parse DATABASE_URL: %v", err)
		}

		pool, err = pgxpool.NewWithConfig(context.Background(), cfg)
		if err == nil {
			err = pool.Ping(context.Background())
			if err == nil {
				log.Println("Successfully connected to the database")
				break
			}
		}

		log.Printf("Failed to connect to the database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database after %d attempts: %v", maxRetries, err)
	}

	// Enable pgvector extension before any schema that uses vector columns.
	_, err = pool.Exec(context.Background(), "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return nil, fmt.Errorf("unable to create vector extension: %v", err)
	}

	if err := bootstrap(pool); err != nil {
		return nil, err
	}

	return pool, nil
}

func bootstrap(pool *pgxpool.Pool) error {
	ctx := context.Background()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			uuid TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			file_name TEXT NOT NULL DEFAULT '',
			file_size BIGINT NOT NULL DEFAULT 0,
			file_type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'uploaded',
			summary TEXT NOT NULL DEFAULT '',
			chunks_count INT NOT NULL DEFAULT 0,
			tasks_count INT NOT NULL DEFAULT 0,
			processed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS document_pages (
			id BIGSERIAL PRIMARY KEY,
			doc_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			page_no INT NOT NULL,
			text TEXT,
			method TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			uuid TEXT UNIQUE NOT NULL,
			doc_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_no INT NOT NULL,
			page_no INT NOT NULL DEFAULT 1,
			text TEXT NOT NULL,
			text_excerpt TEXT NOT NULL DEFAULT '',
			token_count INT NOT NULL DEFAULT 0,
			embedding vector(384),
			embedding_id TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			entities JSONB,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			uuid TEXT UNIQUE NOT NULL,
			doc_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			source_chunk_id BIGINT REFERENCES chunks(id) ON DELETE SET NULL,
			task_text TEXT NOT NULL,
			assignee TEXT NOT NULL DEFAULT '',
			due_date TIMESTAMPTZ,
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT 'open',
			extracted_by TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			id BIGSERIAL PRIMARY KEY,
			doc_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_id BIGINT REFERENCES chunks(id) ON DELETE CASCADE,
			level TEXT NOT NULL,
			text TEXT NOT NULL,
			method TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS processing_jobs (
			id BIGSERIAL PRIMARY KEY,
			uuid TEXT UNIQUE NOT NULL,
			doc_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'queued',
			attempts INT NOT NULL DEFAULT 0,
			max_attempts INT NOT NULL DEFAULT 3,
			last_error TEXT NOT NULL DEFAULT '',
			enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_doc_id ON tasks(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_doc_id ON summaries(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_jobs_status ON processing_jobs(status, enqueued_at)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}

	return nil
}
