package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/<scope>/<stem>-<hash>.json    # JSON envelope（payload + TTL）
//
// 条目有效性由 stored_at + ttl_seconds 决定；过期条目等同于不存在。
type Store interface {
	// Get 返回未过期的缓存条目。若不存在或已过期则返回 ErrNotFound；
	// 过期文件会在读取时被顺手删除（惰性淘汰）。
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put 写入 payload 与 TTL，并产出新的 Entry 描述。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。
	Put(ctx context.Context, key Key, payload []byte, ttl time.Duration) (*Entry, error)

	// Invalidate 删除条目文件；条目本就不存在时不算错误。
	Invalidate(ctx context.Context, key Key) error

	// Sweep 删除 mtime 早于 maxAge 的所有条目文件，返回删除数量。
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// Entry 表示一次缓存命中结果，包含载荷与有效期信息。
type Entry struct {
	Key      Key
	Payload  []byte
	StoredAt time.Time
	TTL      time.Duration
	FilePath string
}

// Expired 判断条目在 now 时刻是否已过期。
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) >= e.TTL
}

// ErrNotFound 表示缓存不存在（含已过期的情况）。
var ErrNotFound = errors.New("cache entry not found")
