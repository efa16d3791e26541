// Package storage описывает контракт персистентного хранилища документа и общие ошибки бэкендов.
//
// Хранилище держит один JSON-документ (models.Document). Бэкенд обязан заменять его целиком и
// атомарно: читатель видит либо старую, либо новую версию, но не смесь.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

var (
	// ErrDocumentNotFound документ еще ни разу не сохранялся.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrVersionConflict документ изменился с момента чтения.
	ErrVersionConflict = errors.New("document version conflict")
)

// Backend читает и заменяет документ целиком.
//
// Save выполняет сравнение с обменом по doc.Version: запись проходит, только если сохраненная
// версия совпадает с doc.Version, после чего сохраняется версия doc.Version+1 и doc.Version
// обновляется. Иначе возвращается ErrVersionConflict и документ не меняется.
type Backend interface {
	Load(ctx context.Context) (*models.Document, error)
	Save(ctx context.Context, doc *models.Document) error
}

// CorruptError сохраненный документ не удалось разобрать.
type CorruptError struct {
	// Version версия, под которой лежит нечитаемый документ. Перезапись должна идти от нее.
	Version int64
	Err     error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt document (version %d): %v", e.Version, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}
