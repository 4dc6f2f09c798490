package service

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	descriptionSanitizer = bluemonday.UGCPolicy()
)

// RenderDescription 将习惯描述的 Markdown 渲染为净化后的 HTML。
// 描述由用户输入，净化策略保证脚本与危险标签不会出现在输出里。
func RenderDescription(markdown string) string {
	trimmed := strings.TrimSpace(markdown)
	if trimmed == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(trimmed), &buf); err != nil {
		// 渲染失败时退回净化后的原文，不让单条描述拖垮整个响应
		return descriptionSanitizer.Sanitize(trimmed)
	}

	return descriptionSanitizer.Sanitize(buf.String())
}
