package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/cache"
	"github.com/moxopixel/moxo-backend/internal/fetch"
	"github.com/moxopixel/moxo-backend/internal/logging"
)

const profileScope = "profile"

// ProfileService 为配置中的固定用户缓存 profile 与仓库列表。
// user / repos 使用两把独立的缓存键，共享同一份 TTL 策略，不做渲染。
type ProfileService struct {
	store     cache.Store
	fetcher   *fetch.Fetcher
	apiBase   string
	user      string
	userAgent string
	ttl       time.Duration
	logger    *logrus.Logger
}

// ProfileOptions 汇总构造 ProfileService 所需的依赖与参数。
type ProfileOptions struct {
	Store     cache.Store
	Fetcher   *fetch.Fetcher
	APIBase   string
	User      string
	UserAgent string
	TTL       time.Duration
	Logger    *logrus.Logger
}

// NewProfileService 校验依赖并构造服务实例。
func NewProfileService(opts ProfileOptions) (*ProfileService, error) {
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if strings.TrimSpace(opts.User) == "" {
		return nil, errors.New("github user is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &ProfileService{
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		apiBase:   strings.TrimSuffix(opts.APIBase, "/"),
		user:      opts.User,
		userAgent: opts.UserAgent,
		ttl:       opts.TTL,
		logger:    opts.Logger,
	}, nil
}

// GetUser 返回用户 profile 数据（缓存或回源）。
func (s *ProfileService) GetUser(ctx context.Context) ProfileResult {
	return s.getResource(ctx, "user", fmt.Sprintf("users/%s", s.user))
}

// GetRepos 返回用户的仓库列表（缓存或回源）。
func (s *ProfileService) GetRepos(ctx context.Context) ProfileResult {
	return s.getResource(ctx, "repos", fmt.Sprintf("users/%s/repos", s.user))
}

// GetAll 并发取回两侧数据并独立聚合：一侧失败不会阻塞也不会丢掉另一侧。
func (s *ProfileService) GetAll(ctx context.Context) AllResult {
	var (
		wg    sync.WaitGroup
		user  ProfileResult
		repos ProfileResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		user = s.GetUser(ctx)
	}()
	go func() {
		defer wg.Done()
		repos = s.GetRepos(ctx)
	}()
	wg.Wait()

	return AllResult{
		Success: user.Success && repos.Success,
		User:    user,
		Repos:   repos,
	}
}

// ClearAll 清除 user 与 repos 两侧缓存。
func (s *ProfileService) ClearAll(ctx context.Context) error {
	userErr := s.store.Invalidate(ctx, cache.NewKey(profileScope, s.user, "user"))
	reposErr := s.store.Invalidate(ctx, cache.NewKey(profileScope, s.user, "repos"))
	if userErr != nil {
		return userErr
	}
	return reposErr
}

// getResource 实现 检查缓存 → 回源 → 写缓存 的公共流程，缓存中保存上游原始 JSON。
func (s *ProfileService) getResource(ctx context.Context, resourceType, endpoint string) ProfileResult {
	key := cache.NewKey(profileScope, s.user, resourceType)

	if entry, err := s.store.Get(ctx, key); err == nil {
		if json.Valid(entry.Payload) {
			s.logger.WithFields(logging.RequestFields("profile", key.String(), SourceCache, true)).
				Debug("profile 缓存命中")
			return ProfileResult{Success: true, Data: entry.Payload, Source: SourceCache}
		}
	}

	result, err := s.fetcher.Do(ctx, fetch.Request{
		Method: "GET",
		URL:    s.apiBase + "/" + endpoint,
		Header: map[string]string{
			"Accept":     "application/vnd.github.v3+json",
			"User-Agent": s.userAgent,
		},
	})
	if err != nil {
		humanized := humanizeFetchError(err, resourceType)
		s.logger.WithFields(logging.RequestFields("profile", key.String(), SourceError, false)).
			Warn(humanized.Error())
		return ProfileResult{Success: false, Source: SourceError, Error: humanized.Error()}
	}

	if !json.Valid(result.Body) {
		return ProfileResult{Success: false, Source: SourceError, Error: "invalid JSON response from GitHub API"}
	}

	if _, err := s.store.Put(ctx, key, result.Body, s.ttl); err != nil {
		s.logger.WithFields(logging.RequestFields("profile", key.String(), SourceLive, false)).
			WithField("error", err.Error()).
			Warn("profile 写缓存失败")
	}

	return ProfileResult{Success: true, Data: result.Body, Source: SourceLive}
}
