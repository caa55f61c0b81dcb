package letter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	ErrTemplateNotFound = errors.New("letter template not found")
	ErrTemplateInvalid  = errors.New("letter template is not a usable PDF form")
)

// TemplateCache holds the template bytes for the life of the process.
// Concurrent first loads share one read, and a failed read is retried on the
// next call. Callers must treat the returned slice as read-only.
type TemplateCache struct {
	path     string
	readFile func(string) ([]byte, error)

	mu    sync.RWMutex
	data  []byte
	group singleflight.Group
}

func NewTemplateCache(path string) *TemplateCache {
	return &TemplateCache{path: path, readFile: os.ReadFile}
}

func (c *TemplateCache) Path() string { return c.path }

func (c *TemplateCache) Get(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	data := c.data
	c.mu.RUnlock()
	if data != nil {
		return data, nil
	}

	ch := c.group.DoChan(c.path, func() (interface{}, error) {
		c.mu.RLock()
		cached := c.data
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		b, err := c.readFile(c.path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, c.path)
		}
		if err != nil {
			return nil, fmt.Errorf("read letter template %s: %w", c.path, err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrTemplateInvalid, c.path)
		}

		c.mu.Lock()
		c.data = b
		c.mu.Unlock()
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
