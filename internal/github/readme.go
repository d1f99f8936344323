package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/cache"
	"github.com/moxopixel/moxo-backend/internal/fetch"
	"github.com/moxopixel/moxo-backend/internal/logging"
	"github.com/moxopixel/moxo-backend/internal/render"
)

const readmeScope = "readme"

// ReadmeService 组合磁盘缓存、双通道 Fetcher 与渲染链，
// 回答“这个仓库渲染后的 README 是什么”。
type ReadmeService struct {
	store     cache.Store
	fetcher   *fetch.Fetcher
	chain     *render.Chain
	apiBase   string
	userAgent string
	ttl       time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

// ReadmeOptions 汇总构造 ReadmeService 所需的依赖与参数。
type ReadmeOptions struct {
	Store     cache.Store
	Fetcher   *fetch.Fetcher
	Chain     *render.Chain
	APIBase   string
	UserAgent string
	TTL       time.Duration
	Logger    *logrus.Logger
}

// NewReadmeService 校验依赖并构造服务实例。
func NewReadmeService(opts ReadmeOptions) (*ReadmeService, error) {
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.Chain == nil {
		return nil, errors.New("render chain is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &ReadmeService{
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		chain:     opts.Chain,
		apiBase:   strings.TrimSuffix(opts.APIBase, "/"),
		userAgent: opts.UserAgent,
		ttl:       opts.TTL,
		logger:    opts.Logger,
		now:       time.Now,
	}, nil
}

// GetReadme 按 检查缓存 → 回源 → 渲染 → 写缓存 的顺序取回渲染后的 README。
// 回源失败返回结构化错误结果，失败结果永远不会进缓存。
func (s *ReadmeService) GetReadme(ctx context.Context, owner, repo string) ReadmeResult {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return ReadmeResult{Success: false, Source: SourceError, Error: "owner and repo are required"}
	}

	key := cache.NewKey(readmeScope, owner, repo)

	if entry, err := s.store.Get(ctx, key); err == nil {
		var cached ReadmeResult
		if err := json.Unmarshal(entry.Payload, &cached); err == nil && cached.Success {
			cached.Source = SourceCache
			s.logger.WithFields(logging.RequestFields("readme", key.String(), SourceCache, true)).
				Debug("README 缓存命中")
			return cached
		}
	}

	markdown, err := s.fetchMarkdown(ctx, owner, repo)
	if err != nil {
		s.logger.WithFields(logging.RequestFields("readme", key.String(), SourceError, false)).
			Warn(err.Error())
		return ReadmeResult{Success: false, Source: SourceError, Error: err.Error()}
	}

	content := s.chain.Render(ctx, markdown, render.Context{Owner: owner, Repo: repo})

	result := ReadmeResult{
		Success:  true,
		Content:  content,
		CachedAt: s.now().Unix(),
		Source:   SourceLive,
	}

	if payload, err := json.Marshal(result); err == nil {
		// 写缓存失败只降级为日志：调用方照样拿到刚取回的内容。
		if _, err := s.store.Put(ctx, key, payload, s.ttl); err != nil {
			s.logger.WithFields(logging.RequestFields("readme", key.String(), SourceLive, false)).
				WithField("error", err.Error()).
				Warn("README 写缓存失败")
		}
	}

	return result
}

// ClearCache 清除单个仓库的缓存条目。
func (s *ReadmeService) ClearCache(ctx context.Context, owner, repo string) error {
	return s.store.Invalidate(ctx, cache.NewKey(readmeScope, owner, repo))
}

// fetchMarkdown 回源取 README 元数据并解出 base64 的 markdown 原文。
func (s *ReadmeService) fetchMarkdown(ctx context.Context, owner, repo string) ([]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/readme", s.apiBase, owner, repo)

	result, err := s.fetcher.Do(ctx, fetch.Request{
		Method: "GET",
		URL:    url,
		Header: map[string]string{
			"Accept":     "application/vnd.github.v3+json",
			"User-Agent": s.userAgent,
		},
	})
	if err != nil {
		return nil, humanizeFetchError(err, "README")
	}

	var upstream readmeUpstream
	if err := json.Unmarshal(result.Body, &upstream); err != nil || upstream.Content == "" {
		return nil, errors.New("invalid README response from GitHub API")
	}

	markdown, err := decodeContent(upstream.Content)
	if err != nil {
		return nil, fmt.Errorf("decode README content: %w", err)
	}
	return markdown, nil
}

// decodeContent 解码 GitHub 返回的 base64 内容。按字节解码后原样输出，
// 多字节 UTF-8 序列不会被破坏。
func decodeContent(encoded string) ([]byte, error) {
	// GitHub 会在 base64 中插入换行，标准解码器不接受，先剥掉。
	compact := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, encoded)
	return base64.StdEncoding.DecodeString(compact)
}

// humanizeFetchError 把 fetch 的分类错误翻译成面向用户的消息，
// 文案与原站点保持一致。
func humanizeFetchError(err error, what string) error {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fetch.KindNotFound:
			return fmt.Errorf("Repository or %s not found (HTTP 404)", what)
		case fetch.KindRateLimited:
			return fmt.Errorf("GitHub API rate limit exceeded (HTTP %d)", fe.Status)
		default:
			if fe.Status > 0 {
				return fmt.Errorf("GitHub API returned HTTP %d", fe.Status)
			}
		}
	}
	return fmt.Errorf("Failed to fetch %s from GitHub API: %v", what, err)
}
