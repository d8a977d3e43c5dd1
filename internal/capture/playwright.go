package capture

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

type PlaywrightConfig struct {
	ViewportWidth  int
	ViewportHeight int

	FullPage bool

	Timeout time.Duration
	Delay   time.Duration

	Headless                  bool
	ChromeDevtoolsProtocolURL string
}

func DefaultPlaywrightConfig() PlaywrightConfig {
	return PlaywrightConfig{
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		FullPage:       true,
		Timeout:        30 * time.Second,
		Delay:          time.Second,
		Headless:       true,
	}
}

type PlaywrightCapturer struct {
	config PlaywrightConfig
}

func NewPlaywrightCapturer(ctx context.Context, p PlaywrightConfig) (Capturer, error) {
	return &PlaywrightCapturer{
		config: p,
	}, nil
}

func (c *PlaywrightCapturer) Capture(ctx context.Context, url string, captureOptions CaptureOptions) (*CaptureResult, error) {
	p, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	defer p.Stop()

	var browser playwright.Browser

	if c.config.ChromeDevtoolsProtocolURL == "" {
		browser, err = p.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(c.config.Headless),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		defer browser.Close()
	} else {
		browser, err = p.Chromium.ConnectOverCDP(c.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to browser via CDP at %s: %w", c.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	page, err := browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()

	width, height := c.config.ViewportWidth, c.config.ViewportHeight
	if captureOptions.ViewportWidth > 0 && captureOptions.ViewportHeight > 0 {
		width, height = captureOptions.ViewportWidth, captureOptions.ViewportHeight
	}
	if err := page.SetViewportSize(width, height); err != nil {
		return nil, fmt.Errorf("failed to set viewport size: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			page.Close()
		case <-done:
		}
	}()
	defer close(done)

	if len(captureOptions.Headers) > 0 {
		if err := page.SetExtraHTTPHeaders(captureOptions.Headers); err != nil {
			return nil, fmt.Errorf("failed to set HTTP headers: %w", err)
		}
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(c.config.Timeout.Milliseconds())),
	}); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if captureOptions.WaitSelector != "" {
		if _, err := page.WaitForSelector(captureOptions.WaitSelector, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(float64(c.config.Timeout.Milliseconds())),
		}); err != nil {
			return nil, fmt.Errorf("failed to wait for %s: %w", captureOptions.WaitSelector, err)
		}
	}

	if c.config.Delay > 0 {
		select {
		case <-time.After(c.config.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if len(captureOptions.MaskSelectors) > 0 {
		unique := make([]byte, 8)
		if _, err := rand.Read(unique); err != nil {
			return nil, fmt.Errorf("failed to generate unique identifier: %w", err)
		}
		script := maskScript(fmt.Sprintf("mask-%s", hex.EncodeToString(unique)))

		if _, err := page.Evaluate(script, captureOptions.MaskSelectors); err != nil {
			return nil, fmt.Errorf("failed to mask selectors: %w", err)
		}
	}

	screenshotBytes, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage:   playwright.Bool(c.config.FullPage),
		Type:       playwright.ScreenshotTypePng,
		Animations: playwright.ScreenshotAnimationsDisabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}

	return &CaptureResult{
		Screenshot: screenshotBytes,
		URL:        url,
		CapturedAt: time.Now(),
	}, nil
}

// maskScript paints every element matched by the selectors passed to it
// solid black, so dynamic content does not leak into the comparison.
func maskScript(className string) string {
	maskCSS := fmt.Sprintf(`
.%s {
  position: relative !important;
}
.%s::after {
  content: "" !important;
  position: absolute !important;
  inset: 0 !important;
  background-color: black !important;
  z-index: 2147483646 !important;
  pointer-events: none !important;
}
`, className, className)

	return fmt.Sprintf(`(selectors) => {
		const style = document.createElement('style');
		style.textContent = %q;
		document.head.appendChild(style);

		for (const selector of selectors) {
			for (const element of document.querySelectorAll(selector)) {
				if (window.getComputedStyle(element).position === 'static') {
					element.style.position = 'relative';
				}
				element.classList.add(%q);
			}
		}
	}`, maskCSS, className)
}
