package config

import (
	"errors"
	"net/url"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	if err := validateAPIBase(c.GitHub.APIBase); err != nil {
		return err
	}
	if c.GitHub.User == "" {
		return newFieldError("GitHub.User", "不能为空")
	}

	i := c.Images
	if i.AssetsPath == "" {
		return newFieldError("Images.AssetsPath", "不能为空")
	}
	if i.ImagesPerPage <= 0 {
		return newFieldError("Images.ImagesPerPage", "必须大于 0")
	}
	if i.WebPQuality <= 0 || i.WebPQuality > 100 {
		return newFieldError("Images.WebPQuality", "必须在 1-100")
	}

	if c.Client.CachePath == "" {
		return newFieldError("Client.CachePath", "不能为空")
	}
	if c.Client.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Client.CacheTTL", "必须大于 0")
	}

	return nil
}

func validateAPIBase(raw string) error {
	if raw == "" {
		return newFieldError("GitHub.APIBase", "不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return newFieldError("GitHub.APIBase", "必须是合法的 http(s) 地址")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return newFieldError("GitHub.APIBase", "必须是合法的 http(s) 地址")
	}
	return nil
}
