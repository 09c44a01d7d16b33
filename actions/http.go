package actions

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	automation "github.com/execore/automation"
	"github.com/execore/automation/permission"
)

const (
	httpFetchTimeout  = 15 * time.Second
	httpMaxBodyBytes  = 1 << 20 // 1MB
	httpMaxTextLength = 10000
)

// HTTPFetchExecutor returns the engine's http_fetch Executor: it fetches a
// URL with a bounded client, strips markup down to readable text, and is
// gated by perm before the request goes out.
func HTTPFetchExecutor(perm *permission.Manager) automation.Executor {
	h := &httpAction{
		perm: perm,
		client: &http.Client{
			Timeout: httpFetchTimeout,
		},
	}
	return h.fetch
}

type httpAction struct {
	perm   *permission.Manager
	client *http.Client
}

func (h *httpAction) fetch(ctx context.Context, params map[string]any) (any, error) {
	url := stringParam(params, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("only http and https urls are supported")
	}

	if _, err := h.perm.Decide("http_fetch", params); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, httpFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "automation-engine/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	text := string(body)
	if strings.Contains(contentType, "text/html") {
		text = stripHTML(text)
	}
	if len(text) > httpMaxTextLength {
		text = text[:httpMaxTextLength] + "\n... (truncated)"
	}

	return map[string]any{
		"url":         url,
		"status":      resp.StatusCode,
		"contentType": contentType,
		"text":        text,
	}, nil
}

var (
	scriptOrStyleTagRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagRe          = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlEntityRe       = regexp.MustCompile(`&(#\d+|#x[0-9a-fA-F]+|[a-zA-Z]+);`)
	blankRunRe         = regexp.MustCompile(`\n{3,}`)
)

var htmlEntities = map[string]string{
	"amp": "&", "lt": "<", "gt": ">", "quot": `"`, "apos": "'", "nbsp": " ",
}

// stripHTML reduces an HTML document to plain text. It is a minimal,
// regex-based fallback rather than a full parser: good enough for turning a
// fetched page into text a task can reason about, not for faithful
// rendering.
func stripHTML(html string) string {
	html = scriptOrStyleTagRe.ReplaceAllString(html, "")
	html = htmlTagRe.ReplaceAllString(html, "\n")
	html = htmlEntityRe.ReplaceAllStringFunc(html, func(entity string) string {
		name := entity[1 : len(entity)-1]
		if replacement, ok := htmlEntities[name]; ok {
			return replacement
		}
		return " "
	})
	lines := strings.Split(html, "\n")
	var trimmed []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			trimmed = append(trimmed, line)
		}
	}
	text := strings.Join(trimmed, "\n")
	return blankRunRe.ReplaceAllString(text, "\n\n")
}
