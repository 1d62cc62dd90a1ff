package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DocumentAIClient abstracts Document AI text extraction for testability.
// Satisfied by internal/gcpclient.DocumentAIAdapter.
type DocumentAIClient interface {
	ProcessDocument(ctx context.Context, processor, gcsURI, mimeType string) (*DocumentAIResponse, error)
}

// DocumentAIResponse is the parsed result from Document AI.
type DocumentAIResponse struct {
	Text  string
	Pages int
}

// ObjectDownloader abstracts downloading an object from Cloud Storage.
// Satisfied by internal/gcpclient.StorageAdapter.
type ObjectDownloader interface {
	Download(ctx context.Context, bucket, object string) ([]byte, error)
}

// DocumentAIExtractor extracts text from a GCS-resident document, routing
// text-based formats through a direct download and everything else (PDF,
// images) through Document AI with a direct-download fallback if Document AI
// fails, matching the teacher's parser routing logic.
type DocumentAIExtractor struct {
	client     DocumentAIClient
	processor  string
	downloader ObjectDownloader
}

func NewDocumentAIExtractor(client DocumentAIClient, processor string, downloader ObjectDownloader) *DocumentAIExtractor {
	return &DocumentAIExtractor{client: client, processor: processor, downloader: downloader}
}

// Extract implements ingest.Extractor. filePath is expected to be a
// "gs://bucket/object" URI.
func (e *DocumentAIExtractor) Extract(ctx context.Context, filePath string) (string, error) {
	if filePath == "" {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: filePath is empty")
	}

	ext := strings.ToLower(filepath.Ext(filePath))

	if isTextBasedFormat(ext) {
		return e.extractText(ctx, filePath)
	}

	mimeType := detectMimeType(ext)
	resp, err := e.client.ProcessDocument(ctx, e.processor, filePath, mimeType)
	if err != nil {
		slog.Warn("document ai extraction failed, attempting direct download fallback", "file", filePath, "error", err)
		return e.extractFallback(ctx, filePath, err)
	}
	if resp.Text == "" {
		slog.Warn("document ai returned empty text, attempting direct download fallback", "file", filePath)
		return e.extractFallback(ctx, filePath, fmt.Errorf("document ai returned empty text"))
	}
	return resp.Text, nil
}

func (e *DocumentAIExtractor) extractText(ctx context.Context, filePath string) (string, error) {
	if e.downloader == nil {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: text extraction requires an ObjectDownloader")
	}
	bucket, object, err := parseGCSURI(filePath)
	if err != nil {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: %w", err)
	}
	data, err := e.downloader.Download(ctx, bucket, object)
	if err != nil {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: download: %w", err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: file is empty")
	}
	return text, nil
}

func (e *DocumentAIExtractor) extractFallback(ctx context.Context, filePath string, origErr error) (string, error) {
	if e.downloader == nil {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: document ai failed and no fallback available: %w", origErr)
	}
	bucket, object, err := parseGCSURI(filePath)
	if err != nil {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: document ai failed: %w", origErr)
	}
	data, err := e.downloader.Download(ctx, bucket, object)
	if err != nil {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: document ai failed and fallback download failed: %w", origErr)
	}
	text := string(data)
	if !isLikelyText(text) {
		return "", fmt.Errorf("ingest.DocumentAIExtractor.Extract: document ai failed for binary file (fallback cannot parse): %w", origErr)
	}
	return text, nil
}

func isTextBasedFormat(ext string) bool {
	switch ext {
	case ".txt", ".md", ".csv", ".json", ".log", ".xml", ".yaml", ".yml", ".html", ".htm":
		return true
	}
	return false
}

func isLikelyText(s string) bool {
	if len(s) == 0 {
		return false
	}
	sample := s
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if !utf8.ValidString(sample) {
		return false
	}
	nonPrintable, total := 0, 0
	for _, r := range sample {
		total++
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(nonPrintable)/float64(total) < 0.05
}

func parseGCSURI(uri string) (bucket, object string, err error) {
	if uri == "" {
		return "", "", fmt.Errorf("empty GCS URI")
	}
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI %q: must start with gs://", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	idx := strings.Index(trimmed, "/")
	if idx <= 0 {
		return "", "", fmt.Errorf("invalid GCS URI %q: missing object path", uri)
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}

func detectMimeType(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
