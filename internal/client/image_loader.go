package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// thumbExtensions 是缩略图探测顺序，与站点资源的命名习惯一致。
var thumbExtensions = []string{".jpg", ".png", ".webp", ".jpeg"}

// Indicator 抽象加载指示（原站的转圈 DOM 元素）。Begin 在网络尝试前调用，
// End 在成功与失败两条路径上都保证被调用。
type Indicator interface {
	Begin()
	End()
}

// ImageLoader 协调图片加载：同一 URL 的并发请求只发一次网络尝试，
// 永久失败的 URL 记入黑名单，后续调用不再碰网络。
type ImageLoader struct {
	group       singleflight.Group
	placeholder string
	logger      *logrus.Logger

	// fetch 可在测试中替换；默认用独立的 http.Client 拉取图片字节。
	fetch func(ctx context.Context, url string) ([]byte, error)

	mu     sync.Mutex
	failed map[string]struct{}
}

// NewImageLoader 构造加载器；placeholder 是降级时返回的资源路径。
func NewImageLoader(placeholder string, logger *logrus.Logger) *ImageLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	return &ImageLoader{
		placeholder: placeholder,
		logger:      logger,
		fetch: func(ctx context.Context, url string) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
			if err != nil {
				return nil, err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, fmt.Errorf("image fetch status %d", resp.StatusCode)
			}
			return io.ReadAll(resp.Body)
		},
		failed: make(map[string]struct{}),
	}
}

// Preload 拉取图片字节。已知失败的 URL 立即报错且不发请求；
// 正在加载的 URL 由并发调用方共享同一个结果。
func (l *ImageLoader) Preload(ctx context.Context, url string) ([]byte, error) {
	if l.Failed(url) {
		return nil, fmt.Errorf("skipping previously failed image: %s", url)
	}

	payload, err, _ := l.group.Do(url, func() (interface{}, error) {
		data, err := l.fetch(ctx, url)
		if err != nil {
			l.markFailed(url)
			return nil, fmt.Errorf("failed to preload image %s: %w", url, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return payload.([]byte), nil
}

// Load 是 UI 路径用的降级版 Preload：指示器在两条路径上都会被收尾，
// 失败时返回占位资源路径而不是错误——界面流程不因一张坏图停摆。
func (l *ImageLoader) Load(ctx context.Context, url string, indicator Indicator) (payload []byte, resolved string) {
	if indicator != nil {
		indicator.Begin()
		defer indicator.End()
	}

	payload, err := l.Preload(ctx, url)
	if err != nil {
		l.logger.WithFields(logrus.Fields{
			"url":   url,
			"error": err.Error(),
		}).Warn("图片加载失败，使用占位图")
		return nil, l.placeholder
	}
	return payload, url
}

// ResolveThumb 按固定扩展名顺序探测缩略图，全部失败时返回占位资源路径。
func (l *ImageLoader) ResolveThumb(ctx context.Context, baseURL, basename string) string {
	for _, ext := range thumbExtensions {
		candidate := baseURL + basename + ext
		if _, err := l.Preload(ctx, candidate); err == nil {
			return candidate
		}
	}
	return l.placeholder
}

// Failed 报告 URL 是否已被记为永久失败。
func (l *ImageLoader) Failed(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.failed[url]
	return ok
}

// Clear 重置失败黑名单（对应整页重载）。
func (l *ImageLoader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = make(map[string]struct{})
}

func (l *ImageLoader) markFailed(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed[url] = struct{}{}
}
