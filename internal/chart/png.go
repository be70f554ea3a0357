package chart

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PNGOptions controls the headless browser used for screenshots
type PNGOptions struct {
	Timeout time.Duration
	Width   int64
	Height  int64
	// ExecPath overrides the Chrome binary; empty uses chromedp's lookup
	ExecPath string
}

func (o PNGOptions) withDefaults() PNGOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Width <= 0 {
		o.Width = svgWidth
	}
	if o.Height <= 0 {
		o.Height = svgHeight
	}
	return o
}

// RenderPNG draws spec in headless Chrome and returns a screenshot of the chart
func RenderPNG(ctx context.Context, spec Spec, opts PNGOptions) ([]byte, error) {
	opts = opts.withDefaults()

	var doc bytes.Buffer
	if err := RenderHTML(&doc, spec); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(int(opts.Width), int(opts.Height)),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()

	var img []byte
	if err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(opts.Width, opts.Height),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc.String()).Do(ctx)
		}),
		chromedp.WaitVisible(`svg`, chromedp.ByQuery),
		chromedp.Screenshot(`svg`, &img, chromedp.NodeVisible, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("rendering chart in browser: %w", err)
	}

	return img, nil
}
