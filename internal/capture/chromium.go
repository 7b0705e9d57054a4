package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	appLog "famcal/internal/log"
)

// Default capture parameters. They match the desktop layout of /calendar.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 960
	DefaultTimeoutSec = 30
)

// ReadySelector is what /calendar marks once the month is rendered.
const ReadySelector = `[data-ready="true"]`

// MonthOptions defines parameters for capturing one month page.
type MonthOptions struct {
	// BaseURL is the running server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	Year  int
	Month time.Month

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration
}

// normalize validates opts and fills defaults.
func (o MonthOptions) normalize() (MonthOptions, error) {
	if o.BaseURL == "" {
		return o, errors.New("capture: BaseURL is required")
	}
	if o.OutputPath == "" {
		return o, errors.New("capture: OutputPath is required")
	}
	if o.Month < time.January || o.Month > time.December {
		return o, fmt.Errorf("capture: month %d out of range", o.Month)
	}
	if o.Year <= 0 {
		return o, fmt.Errorf("capture: year %d out of range", o.Year)
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeoutSec * time.Second
	}
	return o, nil
}

// PageURL is the /calendar address for the requested month.
func (o MonthOptions) PageURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(o.BaseURL, "/") + "/calendar")
	if err != nil {
		return "", fmt.Errorf("capture: bad base url: %w", err)
	}
	q := u.Query()
	q.Set("year", strconv.Itoa(o.Year))
	q.Set("month", strconv.Itoa(int(o.Month)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CaptureMonthPNG launches a headless Chromium via chromedp, opens the
// month page, waits for ReadySelector and writes a full-page PNG.
func CaptureMonthPNG(parentCtx context.Context, opts MonthOptions) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}
	pageURL, err := opts.PageURL()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	appLog.Info("capture start", "url", pageURL, "width", opts.Width, "height", opts.Height)

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Web fonts may still be painting.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("capture written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}
