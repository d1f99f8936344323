package client

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

var requestBucket = []byte("requests")

// DefaultCacheTTL 与原站 localStorage 版一致（90000000ms）：
// 语义上更接近“清理缓存前一直有效”，刻意压低对限流上游的请求量。
const DefaultCacheTTL = 90000000 * time.Millisecond

// RequestCache 把请求指纹映射到带过期时间戳的响应载荷，进程重启后仍然有效。
type RequestCache struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// OpenRequestCache 打开（或创建）bbolt 缓存文件。ttl <= 0 时使用 DefaultCacheTTL。
func OpenRequestCache(path string, ttl time.Duration) (*RequestCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(requestBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &RequestCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Close 关闭底层数据库。
func (c *RequestCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Fingerprint 由 URL 与可选请求体拼出确定性的缓存键，等价请求必得同键。
func Fingerprint(url string, body []byte) string {
	return url + string(body)
}

// FetchCached 先查缓存：指纹命中且未过期直接返回，loader 不会被调用；
// 未命中或已过期则执行 loader，把结果按固定 TTL 写入后返回。
// loader 失败时不写任何条目，错误原样上抛。
func (c *RequestCache) FetchCached(ctx context.Context, fingerprint string, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if payload, ok := c.lookup(fingerprint); ok {
		return payload, nil
	}

	payload, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store(fingerprint, payload); err != nil {
		// 存储失败不影响调用方拿到结果。
		return payload, nil
	}
	return payload, nil
}

// Clear 清空整个缓存（对应页面上的“重载后重置”语义）。
func (c *RequestCache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(requestBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(requestBucket)
		return err
	})
}

// lookup 返回未过期的载荷；过期条目顺手删除。
func (c *RequestCache) lookup(fingerprint string) ([]byte, bool) {
	var payload []byte
	expired := false

	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(requestBucket).Get([]byte(fingerprint))
		if raw == nil || len(raw) < 8 {
			return nil
		}
		expiry := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8])))
		if c.now().After(expiry) {
			expired = true
			return nil
		}
		// bolt 的值在事务外不可用，必须拷贝。
		payload = make([]byte, len(raw)-8)
		copy(payload, raw[8:])
		return nil
	})
	if err != nil {
		return nil, false
	}

	if expired {
		_ = c.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(requestBucket).Delete([]byte(fingerprint))
		})
	}

	return payload, payload != nil
}

func (c *RequestCache) store(fingerprint string, payload []byte) error {
	expiry := c.now().Add(c.ttl).UnixNano()
	value := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(value[:8], uint64(expiry))
	copy(value[8:], payload)

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(requestBucket).Put([]byte(fingerprint), value)
	})
}
