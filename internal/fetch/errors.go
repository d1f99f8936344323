package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind 是上游失败的分类，调用方据此决定恢复策略。
type Kind string

const (
	// KindTransport 表示连接层失败（拒绝连接、DNS 失败等）。
	KindTransport Kind = "transport"

	// KindTimeout 表示超时，处理上等同于连接失败。
	KindTimeout Kind = "timeout"

	// KindNotFound 对应 404。
	KindNotFound Kind = "not_found"

	// KindRateLimited 对应 403/429（GitHub 匿名限流会返回 403）。
	KindRateLimited Kind = "rate_limited"

	// KindUpstream 覆盖其余非 2xx 状态。
	KindUpstream Kind = "upstream"
)

// Error 携带失败分类、状态码与使用的 transport，支持 errors.As/Unwrap。
type Error struct {
	Kind      Kind
	Status    int
	Transport string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream %s error (status %d) via %s: %s", e.Kind, e.Status, e.Transport, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error via %s: %v", e.Kind, e.Transport, e.Err)
	}
	return fmt.Sprintf("upstream %s error via %s: %s", e.Kind, e.Transport, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyStatus 将非 2xx 状态码映射到 Kind。
func ClassifyStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindUpstream
	}
}

// classifyErr 区分超时与一般连接错误。
func classifyErr(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

// retriable 判断首次失败是否允许切换到 secondary transport：
// 连接错误、超时以及限流状态码；其余非 2xx 直接上抛，由调用方裁决。
func retriable(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return true
	}
	switch fe.Kind {
	case KindTransport, KindTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}
