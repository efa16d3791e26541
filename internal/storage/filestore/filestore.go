// Package filestore хранит документ в одном JSON-файле.
//
// Запись идет во временный файл в том же каталоге, затем fsync и атомарный rename, поэтому
// читатель никогда не видит частично записанный документ. Писатели из разных процессов
// сериализуются эксклюзивной блокировкой файла <path>.lock, под которой проверяется версия.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage"
)

// Store файловый бэкенд хранилища.
type Store struct {
	path string
	log  *slog.Logger
	now  func() time.Time
}

// New создает Store для файла path. Каталог файла должен существовать.
func New(path string, log *slog.Logger) *Store {
	return &Store{
		path: path,
		log:  log,
		now:  time.Now,
	}
}

// Path возвращает путь к файлу документа.
func (s *Store) Path() string {
	return s.path
}

// Load читает документ. Отсутствующий файл дает storage.ErrDocumentNotFound,
// нечитаемый *storage.CorruptError.
func (s *Store) Load(ctx context.Context) (*models.Document, error) {
	const op = "storage.filestore.Load"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	doc, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

// Save атомарно заменяет документ, если версия на диске совпадает с doc.Version.
func (s *Store) Save(ctx context.Context, doc *models.Document) error {
	const op = "storage.filestore.Save"

	unlock, err := lockFile(ctx, s.path+".lock")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	var (
		version int64
		corrupt *storage.CorruptError
	)
	current, err := s.read()
	switch {
	case err == nil:
		version = current.Version
	case errors.Is(err, storage.ErrDocumentNotFound):
	case errors.As(err, &corrupt):
		version = corrupt.Version
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	if version != doc.Version {
		return fmt.Errorf("%s: %w: stored %d, loaded %d", op, storage.ErrVersionConflict, version, doc.Version)
	}
	if corrupt != nil {
		s.backupCorrupt()
	}

	next := *doc
	next.Version = version + 1
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	data = append(data, '\n')

	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	doc.Version = next.Version
	return nil
}

func (s *Store) read() (*models.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &storage.CorruptError{Err: errors.New("empty file")}
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &storage.CorruptError{Err: err}
	}
	return &doc, nil
}

// backupCorrupt сохраняет копию нечитаемого файла рядом с ним перед перезаписью.
func (s *Store) backupCorrupt() {
	backup := s.path + ".corrupt-" + strconv.FormatInt(s.now().Unix(), 10)
	data, err := os.ReadFile(s.path)
	if err == nil {
		err = os.WriteFile(backup, data, 0o600)
	}
	if err != nil {
		s.log.Error("failed to back up corrupt document", slog.String("path", backup), sl.Err(err))
		return
	}
	s.log.Warn("corrupt document backed up", slog.String("path", backup))
}

// writeAtomic пишет data во временный файл, синхронизирует его и переименовывает в path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	file, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmp := file.Name()

	if err := file.Chmod(0o600); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("chmod temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming file into place: %w", err)
	}

	// rename переживает потерю питания только после fsync каталога
	if parent, err := os.Open(dir); err == nil {
		_ = parent.Sync()
		parent.Close()
	}
	return nil
}
