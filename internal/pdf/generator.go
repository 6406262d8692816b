// Package pdf 把渲染好的简历 HTML 打印成 PDF。
package pdf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// A4 尺寸（英寸），与模板中的 @page 设置一致。
const (
	a4Width  = 8.27
	a4Height = 11.69
)

const fontsReadyScript = `() => {
  if (!document.fonts || !document.fonts.ready) return true;
  return Promise.race([
    document.fonts.ready.then(() => true),
    new Promise((resolve) => setTimeout(() => resolve(true), 3000))
  ]);
}`

// Renderer 把完整的 HTML 文档转换为 PDF 字节。
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// RodRenderer 使用 go-rod 在无头 Chromium 中渲染 HTML，每次调用启动独立的浏览器。
type RodRenderer struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewRodRenderer 构造渲染器，timeout 为单次渲染的上限。
func NewRodRenderer(timeout time.Duration, logger *slog.Logger) *RodRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RodRenderer{Timeout: timeout, Logger: logger}
}

// Render 实现 Renderer。
func (r *RodRenderer) Render(ctx context.Context, document string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	browser, cleanup, err := r.launch(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if err := page.SetDocumentContent(document); err != nil {
		return nil, fmt.Errorf("load resume html: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for load: %w", err)
	}
	// 网页字体未就绪会导致回退字体排版，超时则照常打印。
	if _, err := page.Timeout(5 * time.Second).Eval(fontsReadyScript); err != nil {
		r.Logger.Warn("fonts not ready before print", slog.Any("error", err))
	}
	if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(page); err != nil {
		return nil, fmt.Errorf("emulate print media: %w", err)
	}

	width, height, margin := a4Width, a4Height, 0.0
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:        &width,
		PaperHeight:       &height,
		MarginTop:         &margin,
		MarginBottom:      &margin,
		MarginLeft:        &margin,
		MarginRight:       &margin,
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	defer stream.Close()

	out, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	return out, nil
}

// launch 启动一个仅供本次渲染使用的 Chromium；返回的 cleanup 关闭浏览器并删除用户目录。
func (r *RodRenderer) launch(ctx context.Context) (*rod.Browser, func(), error) {
	l := launcher.New().Headless(true).NoSandbox(true).Context(ctx)
	if bin, ok := launcher.LookPath(); ok {
		l = l.Bin(bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, nil, fmt.Errorf("connect chromium: %w", err)
	}
	return browser, func() {
		_ = browser.Close()
		l.Cleanup()
	}, nil
}
