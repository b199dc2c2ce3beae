package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"pixelroom/store/migrations"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLite 基于 modernc.org/sqlite 的 PlayerStore 实现
type SQLite struct {
	sqlDB *sql.DB
}

var _ PlayerStore = (*SQLite)(nil)

// Open 打开数据库并执行内嵌迁移
func Open(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{sqlDB: sqlDB}, nil
}

// Close 关闭数据库句柄
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get select-by-id
func (s *SQLite) Get(ctx context.Context, id string) (Player, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, x, y, color, name, seq FROM players WHERE id = ?`, id)
	var p Player
	if err := row.Scan(&p.ID, &p.X, &p.Y, &p.Color, &p.Name, &p.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Player{}, ErrNotFound
		}
		return Player{}, fmt.Errorf("get player: %w", err)
	}
	return p, nil
}

// List select-all，按 id 排序
func (s *SQLite) List(ctx context.Context) ([]Player, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, x, y, color, name, seq FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	players := make([]Player, 0)
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.X, &p.Y, &p.Color, &p.Name, &p.Seq); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return players, nil
}

// Insert 新增玩家；主键冲突返回 ErrAlreadyExists
func (s *SQLite) Insert(ctx context.Context, p Player) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO players (id, x, y, color, name, seq) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.X, p.Y, p.Color, p.Name, p.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// Update 带 seq 守卫的部分更新：只有 patch.Seq 大于已存储 seq 才写入，
// 晚到的旧写入不会覆盖新位置
func (s *SQLite) Update(ctx context.Context, id string, patch Patch) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE players
		    SET x = COALESCE(?, x),
		        y = COALESCE(?, y),
		        name = COALESCE(?, name),
		        seq = ?
		  WHERE id = ? AND seq < ?`,
		nullInt(patch.X), nullInt(patch.Y), nullString(patch.Name), patch.Seq, id, patch.Seq)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrStale
}

// Delete delete-by-id；不存在也视为成功
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
