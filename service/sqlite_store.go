package service

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TIANLI0/MaskKit/model"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore 结果保存在本地 SQLite 文件中
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore 创建目录、执行迁移后打开数据库
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// 迁移器关闭时会一并关闭连接，所以单独打开一个
	if err := migrateUp(path); err != nil {
		return nil, err
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}
	return db, nil
}

func migrateUp(path string) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: "main"})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Save 写入结果并删除过期记录
func (s *SQLiteStore) Save(ctx context.Context, rec *model.PredictionRecord) error {
	prompts, err := json.Marshal(rec.Prompts)
	if err != nil {
		return err
	}
	response, err := json.Marshal(rec.Response)
	if err != nil {
		return err
	}

	if s.ttl > 0 {
		cutoff := s.now().Add(-s.ttl).UnixMilli()
		if _, err := s.db.ExecContext(ctx, `DELETE FROM predictions WHERE created_at < ?`, cutoff); err != nil {
			return fmt.Errorf("failed to purge expired results: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO predictions (id, image_md5, prompts, response, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.ImageMD5, string(prompts), string(response), rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.PredictionRecord, error) {
	var (
		rec       model.PredictionRecord
		prompts   string
		response  string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, image_md5, prompts, response, created_at FROM predictions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.ImageMD5, &prompts, &response, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query result: %w", err)
	}

	rec.CreatedAt = time.UnixMilli(createdAt)
	if s.ttl > 0 && s.now().After(rec.CreatedAt.Add(s.ttl)) {
		return nil, ErrNotFound
	}

	if err := json.Unmarshal([]byte(prompts), &rec.Prompts); err != nil {
		return nil, fmt.Errorf("failed to decode prompts: %w", err)
	}
	if err := json.Unmarshal([]byte(response), &rec.Response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
