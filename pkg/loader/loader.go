package loader

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
)

// ExtractText converts a raw document payload into plain text for
// chunking. HTML goes through readability so boilerplate and markup do
// not end up in the graph; everything else is treated as text already.
func ExtractText(name, mimeType string, content []byte) ([]byte, error) {
	mediaType := mimeType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mediaType = parsed
	}

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return extractHTML(name, content)
	default:
		return content, nil
	}
}

func extractHTML(name string, content []byte) ([]byte, error) {
	// readability resolves relative links against the document URL; local
	// payloads get a synthetic one.
	base, err := url.Parse("local:///" + url.PathEscape(name))
	if err != nil {
		return nil, fmt.Errorf("building document url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(content), base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return nil, fmt.Errorf("failed to render article text: %w", err)
	}
	return []byte(builder.String()), nil
}
