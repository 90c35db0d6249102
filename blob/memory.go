package blob

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Object is a stored object held by MemoryClient.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryClient keeps objects in memory. It backs tests and local runs.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string]Object

	// FailPut, when set, is returned by Put.
	FailPut error
}

var _ Client = (*MemoryClient)(nil)

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{objects: make(map[string]Object)}
}

func (c *MemoryClient) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	if c.FailPut != nil {
		return c.FailPut
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[key] = Object{ContentType: contentType, Data: buf.Bytes()}
	return nil
}

func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.objects[key]; !ok {
		return ErrNotFound
	}
	delete(c.objects, key)
	return nil
}

func (c *MemoryClient) URL(key string) string { return "memory://" + key }

func (c *MemoryClient) StorageType() string { return "Memory" }

// Get returns the object stored under key.
func (c *MemoryClient) Get(key string) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.objects[key]
	return o, ok
}

// Len returns the number of stored objects.
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}
