package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Key 唯一定位一个缓存条目：Scope 对应存储子目录，Parts 对应请求身份。
// 相同逻辑请求必须产生相同 Key，Parts 在构造时做大小写与空白归一化。
type Key struct {
	Scope string
	Parts []string
}

// NewKey 归一化 scope 与各 parts（去空白、转小写）后构造 Key。
func NewKey(scope string, parts ...string) Key {
	normalized := make([]string, len(parts))
	for i, part := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(part))
	}
	return Key{
		Scope: strings.ToLower(strings.TrimSpace(scope)),
		Parts: normalized,
	}
}

// String 输出 scope/part1/part2 形式，仅用于日志展示。
func (k Key) String() string {
	return k.Scope + "/" + strings.Join(k.Parts, "/")
}

// Filename 生成文件系统安全且免碰撞的文件名：人类可读的 stem 便于排查，
// sha1 后缀保证两个不同逻辑 Key 经清洗后也不会落到同一个文件。
// 哈希基于 NUL 分隔的规范串计算，("ab","c") 与 ("a","bc") 不会同值。
func (k Key) Filename() string {
	canonical := k.Scope + "\x00" + strings.Join(k.Parts, "\x00")
	sum := sha1.Sum([]byte(canonical))

	stem := sanitize(strings.Join(k.Parts, "_"))
	if stem == "" {
		stem = "entry"
	}
	if len(stem) > 80 {
		stem = stem[:80]
	}
	return stem + "-" + hex.EncodeToString(sum[:])[:12] + ".json"
}

// sanitize 将任意 part 压缩成 [a-z0-9_-] 字符集。
func sanitize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
