package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 endpoint/key/命中状态字段，供缓存服务日志复用。
func RequestFields(endpoint, key, source string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"endpoint":  endpoint,
		"cache_key": key,
		"source":    source,
		"cache_hit": cacheHit,
	}
}

// FetchFields 记录一次上游请求用到的 transport 与结果状态。
func FetchFields(method, url, transport string, status int) logrus.Fields {
	return logrus.Fields{
		"method":    method,
		"url":       url,
		"transport": transport,
		"status":    status,
	}
}
