package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory is an in-process Provider. It backs STORAGE_DRIVER=memory for local
// development and doubles as the provider in tests.
type Memory struct {
	mu         sync.Mutex
	publicBase string
	objects    map[string]memoryObject
	calls      int
	received   int64
	err        error
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemory creates an empty Memory provider.
func NewMemory(publicBase string) *Memory {
	if publicBase == "" {
		publicBase = "memory://objects"
	}
	return &Memory{
		publicBase: publicBase,
		objects:    make(map[string]memoryObject),
	}
}

// Put reads in.Body fully and keeps it under the resolved key. The body is
// read without holding the lock.
func (m *Memory) Put(ctx context.Context, in PutInput) (*Object, error) {
	m.mu.Lock()
	m.calls++
	failWith := m.err
	m.mu.Unlock()

	if failWith != nil {
		return nil, failWith
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, readErr := io.ReadAll(in.Body)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.received += int64(len(data))
	if readErr != nil {
		return nil, fmt.Errorf("read body: %w", readErr)
	}
	if in.Size >= 0 && int64(len(data)) != in.Size {
		return nil, fmt.Errorf("size mismatch: declared %d, read %d", in.Size, len(data))
	}

	key := ObjectKey(in.Name, in.AddRandomSuffix)
	if _, taken := m.objects[key]; taken && !in.AddRandomSuffix {
		return nil, fmt.Errorf("object %q already exists", key)
	}
	m.objects[key] = memoryObject{data: data, contentType: in.ContentType}

	return &Object{
		URL:         PublicURL(m.publicBase, key),
		Key:         key,
		ContentType: in.ContentType,
		Size:        int64(len(data)),
	}, nil
}

// Get returns a copy of the object stored under key.
func (m *Memory) Get(key string) (data []byte, contentType string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.contentType, true
}

// Calls returns how many times Put was invoked.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// BytesReceived returns the total bytes read from Put bodies.
func (m *Memory) BytesReceived() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// FailWith makes every later Put return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
