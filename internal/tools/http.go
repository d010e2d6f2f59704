package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/textclean"
)

func (b *Broker) callAPI(ctx context.Context, env Env, a Action) Result {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.APITimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.String("url"), nil)
	if err != nil {
		return failure("Error calling API: "+err.Error(), err)
	}
	for k, v := range a.Headers() {
		req.Header.Set(k, v)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return failure("Error calling API: "+err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, b.downloadLimit()))
	if err != nil {
		return failure("Error calling API: "+err.Error(), err)
	}
	limit := b.cfg.APIBodyChars
	if limit <= 0 {
		limit = 5000
	}
	return Result{Output: fmt.Sprintf("Status: %d\nBody: %s", resp.StatusCode, textclean.Excerpt(string(body), limit))}
}

func (b *Broker) downloadLimit() int64 {
	if b.cfg.MaxDownloadSize > 0 {
		return b.cfg.MaxDownloadSize
	}
	return 32 << 20
}

func (b *Broker) readFile(ctx context.Context, env Env, a Action) Result {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.FileTimeout)
	defer cancel()

	target := a.String("url")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return failure("Error reading file: "+err.Error(), err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return failure("Error reading file: "+err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download status %d", resp.StatusCode)
		return failure(fmt.Sprintf("Error: Failed to download. Status: %d", resp.StatusCode), err)
	}

	limit := b.downloadLimit()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return failure("Error reading file: "+err.Error(), err)
	}
	if int64(len(body)) > limit {
		err := fmt.Errorf("file exceeds %d bytes", limit)
		return failure("Error reading file: "+err.Error(), err)
	}

	switch fileKind(resp.Header.Get("Content-Type"), target) {
	case "pdf":
		text, err := extractPDF(body, b.cfg.PDFMaxPages)
		if err != nil {
			return failure("Error reading PDF: "+err.Error(), err)
		}
		return Result{Output: text}
	case "csv":
		return Result{Output: "CSV content:\n" + textclean.Truncate(string(body), b.cfg.CSVMaxChars)}
	case "html":
		return Result{Output: "HTML content:\n" + textclean.Truncate(readableText(body, target), b.cfg.TextMaxChars)}
	default:
		return Result{Output: "File content:\n" + textclean.Truncate(string(body), b.cfg.TextMaxChars)}
	}
}

func fileKind(contentType, rawURL string) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	switch {
	case mediaType == "application/pdf" || ext == ".pdf":
		return "pdf"
	case mediaType == "text/csv" || ext == ".csv":
		return "csv"
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || ext == ".html" || ext == ".htm":
		return "html"
	}
	return "text"
}

func readableText(body []byte, rawURL string) string {
	pageURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		text := strings.TrimSpace(article.TextContent)
		if article.Title != "" {
			text = "Title: " + article.Title + "\n\n" + text
		}
		return text
	}
	return textclean.CleanHTML(string(body))
}

func extractPDF(body []byte, maxPages int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	total := reader.NumPage()
	if total == 0 {
		return "", errors.New("PDF has no pages")
	}
	pages := total
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	var out strings.Builder
	fmt.Fprintf(&out, "PDF content (%d of %d pages):\n", pages, total)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		fmt.Fprintf(&out, "--- Page %d ---\n%s\n", i, pageText)
	}
	return out.String(), nil
}
