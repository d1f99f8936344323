package fetch

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Transport 抽象一种具体的 HTTP 客户端实现，便于测试注入假实现。
type Transport interface {
	Name() string
	RoundTrip(ctx context.Context, req Request) (status int, body []byte, err error)
}

// NewPrimaryTransport 返回基于 net/http 的 transport，所有请求共享连接池。
func NewPrimaryTransport(timeout time.Duration) Transport {
	return &netTransport{
		client: &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport.Clone(),
		},
	}
}

type netTransport struct {
	client *http.Client
}

func (t *netTransport) Name() string { return "net/http" }

func (t *netTransport) RoundTrip(ctx context.Context, req Request) (int, []byte, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.client.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	for key, value := range req.Header {
		httpReq.Header.Set(key, value)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	// 读完整个 body 再返回；读取中断时不向上传递半截载荷。
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}

// NewSecondaryTransport 返回基于 fasthttp 的 transport，与 net/http 完全独立，
// 用作 primary 失败后的兜底通道。
func NewSecondaryTransport(timeout time.Duration) Transport {
	return &fastTransport{
		client: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		timeout: timeout,
	}
}

type fastTransport struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func (t *fastTransport) Name() string { return "fasthttp" }

func (t *fastTransport) RoundTrip(ctx context.Context, req Request) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.SetRequestURI(req.URL)
	httpReq.Header.SetMethod(req.Method)
	for key, value := range req.Header {
		httpReq.Header.Set(key, value)
	}
	if len(req.Body) > 0 {
		httpReq.SetBody(req.Body)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}

	if err := t.client.DoTimeout(httpReq, httpResp, timeout); err != nil {
		return 0, nil, err
	}

	// fasthttp 的 Body 在 Release 后失效，必须拷贝。
	payload := make([]byte, len(httpResp.Body()))
	copy(payload, httpResp.Body())
	return httpResp.StatusCode(), payload, nil
}
