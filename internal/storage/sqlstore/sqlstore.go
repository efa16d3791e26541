// Package sqlstore хранит документ в строке таблицы documents: PostgreSQL через pgx или
// встраиваемый SQLite через modernc.org/sqlite. Версия документа лежит в отдельной колонке,
// сравнение с обменом делается условием UPDATE ... WHERE version = $n.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Регистрация драйвера sqlite без cgo.
	_ "modernc.org/sqlite"

	"github.com/magabrotheeeer/ssh-subscription/internal/migrations"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage"
)

// Поддерживаемые диалекты.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// documentID ключ единственной строки с документом.
const documentID = "main"

// Store SQL-бэкенд хранилища.
type Store struct {
	DB      *sql.DB
	dialect string
	log     *slog.Logger
	now     func() time.Time
}

// Open подключается к базе, проверяет соединение и применяет миграции.
func Open(ctx context.Context, dialect, dsn string, log *slog.Logger) (*Store, error) {
	const op = "storage.sqlstore.Open"

	var driver string
	switch dialect {
	case DialectPostgres:
		driver = "pgx"
	case DialectSQLite:
		driver = "sqlite"
		dsn = withSQLitePragmas(dsn)
	default:
		return nil, fmt.Errorf("%s: unknown dialect %q", op, dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if dialect == DialectSQLite {
		// sqlite допускает одного писателя
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return New(db, dialect, log), nil
}

// New оборачивает уже открытое соединение с примененной схемой.
func New(db *sql.DB, dialect string, log *slog.Logger) *Store {
	return &Store{
		DB:      db,
		dialect: dialect,
		log:     log,
		now:     time.Now,
	}
}

// Close закрывает соединение с базой.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping проверяет соединение с базой.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Load читает документ. Версия берется из колонки version, а не из тела.
func (s *Store) Load(ctx context.Context) (*models.Document, error) {
	const op = "storage.sqlstore.Load"

	var (
		version int64
		body    string
	)
	err := s.DB.QueryRowContext(ctx,
		s.rebind(`SELECT version, body FROM documents WHERE id = $1`),
		documentID,
	).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var doc models.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, &storage.CorruptError{Version: version, Err: err})
	}
	doc.Version = version
	return &doc, nil
}

// Save заменяет документ, если версия в базе совпадает с doc.Version.
func (s *Store) Save(ctx context.Context, doc *models.Document) error {
	const op = "storage.sqlstore.Save"

	next := *doc
	next.Version = doc.Version + 1
	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	now := s.now().UTC()

	var res sql.Result
	if doc.Version == 0 {
		res, err = s.DB.ExecContext(ctx, s.rebind(`
			INSERT INTO documents (id, version, body, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`),
			documentID, next.Version, string(body), now)
	} else {
		res, err = s.DB.ExecContext(ctx, s.rebind(`
			UPDATE documents
			SET version = $1, body = $2, updated_at = $3
			WHERE id = $4 AND version = $5`),
			next.Version, string(body), now, documentID, doc.Version)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w: loaded %d", op, storage.ErrVersionConflict, doc.Version)
	}
	doc.Version = next.Version
	return nil
}

// rebind переводит плейсхолдеры $n в ? для sqlite. Каждый $n встречается в запросе один раз и по порядку.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' {
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			if j > i+1 {
				b.WriteByte('?')
				i = j - 1
				continue
			}
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func withSQLitePragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
