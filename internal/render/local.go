package render

import (
	"bytes"
	"context"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// localMarkdown 是进程内共享的 goldmark 实例；GFM 扩展覆盖标题、强调、
// 链接、图片、围栏代码块、行内代码与列表，超出远端挂掉时的最低要求。
var localMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
)

// LocalRenderer 在远端渲染不可用时做确定性的本地转换。
type LocalRenderer struct{}

func (r *LocalRenderer) Name() string { return "local-goldmark" }

func (r *LocalRenderer) Render(_ context.Context, markdown []byte, _ Context) (string, error) {
	return localConvert(markdown), nil
}

// localConvert 永不失败：goldmark 出错时退回转义后的原文。
func localConvert(markdown []byte) string {
	var buf bytes.Buffer
	if err := localMarkdown.Convert(markdown, &buf); err != nil {
		return "<pre>" + html.EscapeString(string(markdown)) + "</pre>"
	}
	return buf.String()
}
