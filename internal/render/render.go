// Package render converts retrieved markdown into display HTML. Rendering is
// modeled as an ordered list of strategies tried in sequence: the remote
// GitHub markdown API first, then the local goldmark converter. The chain
// never fails — worst case the caller gets the local conversion of the raw
// input, so raw markdown is never shown to a user.
package render

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/fetch"
)

// Context 携带渲染上下文（owner/repo），远端 GFM 渲染用它解析相对链接。
type Context struct {
	Owner string
	Repo  string
}

func (c Context) String() string {
	return c.Owner + "/" + c.Repo
}

// Renderer 是单个渲染策略；失败时返回 error，由链路决定是否继续。
type Renderer interface {
	Name() string
	Render(ctx context.Context, markdown []byte, rctx Context) (string, error)
}

// Chain 按顺序尝试每个 Renderer，取第一个成功结果。
type Chain struct {
	renderers []Renderer
	logger    *logrus.Logger
}

// NewChain 构造渲染链；renderers 至少包含一个本地兜底实现。
func NewChain(logger *logrus.Logger, renderers ...Renderer) *Chain {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Chain{renderers: renderers, logger: logger}
}

// NewDefaultChain 组装 remote → local 的生产链路。
func NewDefaultChain(fetcher *fetch.Fetcher, apiBase, userAgent string, logger *logrus.Logger) *Chain {
	return NewChain(logger,
		&RemoteRenderer{Fetcher: fetcher, APIBase: apiBase, UserAgent: userAgent},
		&LocalRenderer{},
	)
}

// Render 对调用方永不失败：所有策略都失败时退回对原文的本地转换。
func (c *Chain) Render(ctx context.Context, markdown []byte, rctx Context) string {
	for _, r := range c.renderers {
		html, err := r.Render(ctx, markdown, rctx)
		if err == nil {
			return html
		}
		c.logger.WithFields(logrus.Fields{
			"renderer": r.Name(),
			"context":  rctx.String(),
			"error":    err.Error(),
		}).Warn("渲染策略失败，尝试下一个")
	}
	return localConvert(markdown)
}

// RemoteRenderer 调用 GitHub markdown API 做 GFM 渲染。
type RemoteRenderer struct {
	Fetcher   *fetch.Fetcher
	APIBase   string
	UserAgent string
}

func (r *RemoteRenderer) Name() string { return "github-markdown-api" }

func (r *RemoteRenderer) Render(ctx context.Context, markdown []byte, rctx Context) (string, error) {
	if r.Fetcher == nil {
		return "", fmt.Errorf("remote renderer: no fetcher")
	}

	payload, err := json.Marshal(map[string]string{
		"text":    string(markdown),
		"mode":    "gfm",
		"context": rctx.String(),
	})
	if err != nil {
		return "", err
	}

	result, err := r.Fetcher.Do(ctx, fetch.Request{
		Method: "POST",
		URL:    r.APIBase + "/markdown",
		Header: map[string]string{
			"Accept":       "application/vnd.github.v3+json",
			"Content-Type": "application/json",
			"User-Agent":   r.UserAgent,
		},
		Body: payload,
	})
	if err != nil {
		return "", err
	}
	if len(result.Body) == 0 {
		return "", fmt.Errorf("remote renderer: empty response body")
	}
	return string(result.Body), nil
}
