package client

import (
	"github.com/sirupsen/logrus"

	"github.com/moxopixel/moxo-backend/internal/config"
)

// Client 把请求缓存与图片加载器捆绑成一个可直接消费的门面。
type Client struct {
	Requests *RequestCache
	Images   *ImageLoader
}

// New 按配置组装客户端门面，是库消费方的推荐入口。
func New(cfg config.ClientConfig, logger *logrus.Logger) (*Client, error) {
	requests, err := OpenRequestCache(cfg.CachePath, cfg.CacheTTL.DurationValue())
	if err != nil {
		return nil, err
	}

	return &Client{
		Requests: requests,
		Images:   NewImageLoader(cfg.PlaceholderPath, logger),
	}, nil
}

// Close 释放底层资源。
func (c *Client) Close() error {
	return c.Requests.Close()
}
