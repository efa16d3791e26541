//go:build !unix

package filestore

import (
	"context"
	"sync"
)

var processLock sync.Mutex

// lockFile на платформах без flock сериализует писателей только внутри процесса.
func lockFile(ctx context.Context, _ string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	processLock.Lock()
	return processLock.Unlock, nil
}
