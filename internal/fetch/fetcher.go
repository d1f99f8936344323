package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/logging"
)

// Request 描述一次出站请求；Timeout 为 0 时采用 Fetcher 默认超时。
type Request struct {
	Method  string
	URL     string
	Header  map[string]string
	Body    []byte
	Timeout time.Duration
}

// Result 是一次成功（2xx）请求的结果，并标记实际使用的 transport。
type Result struct {
	Status    int
	Body      []byte
	Transport string
}

// Fetcher 按 primary → secondary 的固定顺序尝试两个 transport。
// 顺序与穷尽条件显式建模，fallback 行为可单独测试。
type Fetcher struct {
	primary   Transport
	secondary Transport
	logger    *logrus.Logger
}

// NewFetcher 构造双通道 Fetcher；两个 transport 均不可为空。
func NewFetcher(primary, secondary Transport, logger *logrus.Logger) (*Fetcher, error) {
	if primary == nil || secondary == nil {
		return nil, fmt.Errorf("both transports are required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{primary: primary, secondary: secondary, logger: logger}, nil
}

// NewDefaultFetcher 组装 net/http + fasthttp 的生产组合。
func NewDefaultFetcher(timeout time.Duration, logger *logrus.Logger) (*Fetcher, error) {
	return NewFetcher(NewPrimaryTransport(timeout), NewSecondaryTransport(timeout), logger)
}

// Do 执行请求：primary 失败（连接错误/超时/限流）时在 secondary 上重试一次，
// 返回首个成功结果或聚合后的 *Error。除这两次尝试外不再有任何重试。
func (f *Fetcher) Do(ctx context.Context, req Request) (*Result, error) {
	result, primaryErr := f.attempt(ctx, f.primary, req)
	if primaryErr == nil {
		return result, nil
	}

	if !retriable(primaryErr) {
		return nil, primaryErr
	}

	f.logger.WithFields(logging.FetchFields(req.Method, req.URL, f.primary.Name(), 0)).
		WithField("error", primaryErr.Error()).
		Warn("primary transport 失败，切换 secondary")

	result, secondaryErr := f.attempt(ctx, f.secondary, req)
	if secondaryErr == nil {
		return result, nil
	}

	// 两个通道都失败：对外暴露 secondary 的分类，primary 的错误挂在链上。
	if fe, ok := secondaryErr.(*Error); ok {
		if fe.Err == nil {
			fe.Err = primaryErr
		}
		return nil, fe
	}
	return nil, secondaryErr
}

// attempt 在单个 transport 上执行一次请求，并把非 2xx 状态折叠成 *Error。
func (f *Fetcher) attempt(ctx context.Context, t Transport, req Request) (*Result, error) {
	status, body, err := t.RoundTrip(ctx, req)
	if err != nil {
		return nil, &Error{
			Kind:      classifyErr(err),
			Transport: t.Name(),
			Err:       err,
		}
	}

	if status < 200 || status > 299 {
		return nil, &Error{
			Kind:      ClassifyStatus(status),
			Status:    status,
			Transport: t.Name(),
			Message:   fmt.Sprintf("%s %s", req.Method, req.URL),
		}
	}

	f.logger.WithFields(logging.FetchFields(req.Method, req.URL, t.Name(), status)).
		Debug("upstream 请求成功")

	return &Result{Status: status, Body: body, Transport: t.Name()}, nil
}
