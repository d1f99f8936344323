package github

import "encoding/json"

// Source 标识结果来自哪条路径。
const (
	SourceCache = "cache"
	SourceLive  = "live"
	SourceError = "error"
)

// ReadmeResult 是 /readme-cache 的响应体，成功结果会整体写入磁盘缓存。
type ReadmeResult struct {
	Success  bool   `json:"success"`
	Content  string `json:"content,omitempty"`
	CachedAt int64  `json:"cached_at,omitempty"`
	Source   string `json:"source"`
	Error    string `json:"error,omitempty"`
}

// ProfileResult 承载 user 或 repos 单侧数据；Data 为上游原始 JSON，不做解析。
type ProfileResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Source  string          `json:"source"`
	Error   string          `json:"error,omitempty"`
}

// AllResult 聚合两侧结果；Success 仅在两侧都成功时为 true，
// 单侧失败不会丢弃另一侧的数据。
type AllResult struct {
	Success bool          `json:"success"`
	User    ProfileResult `json:"user"`
	Repos   ProfileResult `json:"repos"`
}

// readmeUpstream 对应 GitHub /repos/{owner}/{repo}/readme 的响应字段。
type readmeUpstream struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}
