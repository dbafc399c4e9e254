// Package storage holds serialized ciphertext grids while they travel
// between client and evaluator. A stored grid has exactly one owner: the
// receiving side takes it, which removes it from storage.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	uuid "gopkg.in/satori/go.uuid.v1"
)

// Common errors.
var (
	ErrNotFound      = errors.New("ciphertext grid not found")
	ErrStorageFull   = errors.New("storage capacity exceeded")
	ErrInvalidHandle = errors.New("invalid ciphertext grid handle")
	ErrCorrupt       = errors.New("ciphertext grid failed checksum")
)

// Handle uniquely identifies a stored grid.
type Handle string

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.NewV4().String())
}

func (h Handle) validate() error {
	if _, err := uuid.FromString(string(h)); err != nil {
		return errors.Wrapf(ErrInvalidHandle, "%q", string(h))
	}
	return nil
}

// Storage defines the interface for ciphertext grid storage.
type Storage interface {
	// Store saves a blob and returns its handle.
	Store(ctx context.Context, data []byte) (Handle, error)
	// Take retrieves a blob and removes it, transferring ownership.
	Take(ctx context.Context, handle Handle) ([]byte, error)
	// Delete removes a blob.
	Delete(ctx context.Context, handle Handle) error
	// Exists checks if a blob exists.
	Exists(ctx context.Context, handle Handle) (bool, error)
	// Close closes the storage.
	Close() error
}

// MemoryStorage implements in-memory storage bounded by capacity.
type MemoryStorage struct {
	mu       sync.Mutex
	data     map[Handle][]byte
	capacity int64
	size     int64
}

// NewMemoryStorage creates a new in-memory storage. It only works when the
// client and its WorkerPool share a process, which is how the tests run
// them; separate processes use FileStorage or RedisStorage.
func NewMemoryStorage(capacityMB int64) *MemoryStorage {
	return &MemoryStorage{
		data:     make(map[Handle][]byte),
		capacity: capacityMB * 1024 * 1024,
	}
}

func (s *MemoryStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size+int64(len(data)) > s.capacity {
		return "", ErrStorageFull
	}

	handle := NewHandle()
	s.data[handle] = append([]byte(nil), data...)
	s.size += int64(len(data))

	return handle, nil
}

func (s *MemoryStorage) Take(ctx context.Context, handle Handle) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.data[handle]
	if !exists {
		return nil, errors.Wrapf(ErrNotFound, "handle %s", handle)
	}
	delete(s.data, handle)
	s.size -= int64(len(data))

	return data, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, handle Handle) error {
	_, err := s.Take(ctx, handle)
	return err
}

func (s *MemoryStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.data[handle]
	return exists, nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[Handle][]byte)
	s.size = 0
	return nil
}

// FileStorage implements file-based storage for evaluators sharing a disk.
// Each file starts with the SHA-256 of its payload.
type FileStorage struct {
	baseDir string
}

// NewFileStorage creates a new file-based storage.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}

	return &FileStorage{baseDir: baseDir}, nil
}

func (s *FileStorage) path(handle Handle) string {
	h := string(handle)
	// Shard by first 2 chars to avoid too many files in one directory.
	return filepath.Join(s.baseDir, h[:2], h)
}

func (s *FileStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	handle := NewHandle()
	path := s.path(handle)

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", errors.Wrap(err, "create shard dir")
	}

	sum := sha256.Sum256(data)
	blob := make([]byte, 0, len(sum)+len(data))
	blob = append(blob, sum[:]...)
	blob = append(blob, data...)

	// Write atomically via temp file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return "", errors.Wrap(err, "write temp file")
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, "rename temp file")
	}

	return handle, nil
}

func (s *FileStorage) Take(ctx context.Context, handle Handle) ([]byte, error) {
	if err := handle.validate(); err != nil {
		return nil, err
	}
	path := s.path(handle)

	// Renaming first makes the take atomic between competing readers.
	taken := path + ".taken"
	if err := os.Rename(path, taken); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "handle %s", handle)
		}
		return nil, errors.Wrap(err, "claim file")
	}
	defer os.Remove(taken)

	blob, err := os.ReadFile(taken)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	if len(blob) < sha256.Size {
		return nil, errors.Wrapf(ErrCorrupt, "handle %s truncated", handle)
	}
	sum := sha256.Sum256(blob[sha256.Size:])
	if !bytes.Equal(sum[:], blob[:sha256.Size]) {
		return nil, errors.Wrapf(ErrCorrupt, "handle %s", handle)
	}
	return blob[sha256.Size:], nil
}

func (s *FileStorage) Delete(ctx context.Context, handle Handle) error {
	if err := handle.validate(); err != nil {
		return err
	}
	if err := os.Remove(s.path(handle)); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "handle %s", handle)
		}
		return errors.Wrap(err, "remove file")
	}
	return nil
}

func (s *FileStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	if err := handle.validate(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(handle))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "stat file")
}

func (s *FileStorage) Close() error {
	return nil
}

// RedisStorage keeps grids in Redis next to the job queue, so client and
// evaluator need nothing but the Redis address.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage stores blobs under prefix with the given expiry. Closing
// the storage does not close the shared client.
func NewRedisStorage(client *redis.Client, prefix string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStorage) key(handle Handle) string {
	return s.prefix + string(handle)
}

func (s *RedisStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	handle := NewHandle()
	if err := s.client.Set(ctx, s.key(handle), data, s.ttl).Err(); err != nil {
		return "", errors.Wrap(err, "store grid")
	}
	return handle, nil
}

func (s *RedisStorage) Take(ctx context.Context, handle Handle) ([]byte, error) {
	data, err := s.client.GetDel(ctx, s.key(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(ErrNotFound, "handle %s", handle)
		}
		return nil, errors.Wrap(err, "take grid")
	}
	return data, nil
}

func (s *RedisStorage) Delete(ctx context.Context, handle Handle) error {
	n, err := s.client.Del(ctx, s.key(handle)).Result()
	if err != nil {
		return errors.Wrap(err, "delete grid")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "handle %s", handle)
	}
	return nil
}

func (s *RedisStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(handle)).Result()
	if err != nil {
		return false, errors.Wrap(err, "exists")
	}
	return n > 0, nil
}

func (s *RedisStorage) Close() error {
	return nil
}
