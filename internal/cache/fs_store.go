package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整个服务复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
		now:      time.Now,
	}, nil
}

// fileStore 通过 entryLock 避免同一 Key 并发写入，同时复用 basePath。
type fileStore struct {
	basePath string
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// envelope 是落盘的 JSON 结构；Payload 走默认 base64 编码，可承载任意字节。
type envelope struct {
	StoredAt   time.Time `json:"stored_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
	Payload    []byte    `json:"payload"`
}

func (s *fileStore) Get(ctx context.Context, key Key) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath := s.entryPath(key)

	raw, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// 损坏的条目按不存在处理，并直接清掉。
		_ = os.Remove(filePath)
		return nil, ErrNotFound
	}

	entry := &Entry{
		Key:      key,
		Payload:  env.Payload,
		StoredAt: env.StoredAt,
		TTL:      time.Duration(env.TTLSeconds) * time.Second,
		FilePath: filePath,
	}

	if entry.Expired(s.now()) {
		s.evict(key, filePath)
		return nil, ErrNotFound
	}

	return entry, nil
}

func (s *fileStore) Put(ctx context.Context, key Key, payload []byte, ttl time.Duration) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("invalid ttl: %v", ttl)
	}

	unlock := s.lockEntry(key)
	defer unlock()

	filePath := s.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}

	storedAt := s.now().UTC()
	raw, err := json.Marshal(envelope{
		StoredAt:   storedAt,
		TTLSeconds: int64(ttl / time.Second),
		Payload:    payload,
	})
	if err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(raw)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	// mtime 与 stored_at 对齐，Sweep 仅凭 stat 就能判断年龄。
	if err := os.Chtimes(filePath, storedAt, storedAt); err != nil {
		return nil, err
	}

	return &Entry{
		Key:      key,
		Payload:  payload,
		StoredAt: storedAt,
		TTL:      ttl,
		FilePath: filePath,
	}, nil
}

func (s *fileStore) Invalidate(ctx context.Context, key Key) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	unlock := s.lockEntry(key)
	defer unlock()

	if err := os.Remove(s.entryPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})

	return removed, err
}

// evict 在读到过期条目时顺手删除文件，持锁避免与并发 Put 互踩。
func (s *fileStore) evict(key Key, filePath string) {
	unlock := s.lockEntry(key)
	defer unlock()
	_ = os.Remove(filePath)
}

func (s *fileStore) lockEntry(key Key) func() {
	id := key.Scope + "::" + key.Filename()
	s.mu.Lock()
	lock := s.locks[id]
	if lock == nil {
		lock = &entryLock{}
		s.locks[id] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) entryPath(key Key) string {
	scope := sanitize(key.Scope)
	if scope == "" {
		scope = "default"
	}
	return filepath.Join(s.basePath, scope, key.Filename())
}
