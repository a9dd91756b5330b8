package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// DefaultExtractor handles markup and textual application types. Binary
// payloads, PDF and Office documents included, yield no text.
type DefaultExtractor struct{}

func (DefaultExtractor) Extract(mediaType, filename string, data []byte) (string, error) {
	mediaType = refineType(mediaType, filename)

	switch {
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return htmlText(data)
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/json",
		mediaType == "application/xml",
		strings.HasSuffix(mediaType, "+json"),
		strings.HasSuffix(mediaType, "+xml"):
		return string(data), nil
	default:
		return "", nil
	}
}

// refineType replaces a generic declared type with the one implied by the
// attachment's file name.
func refineType(mediaType, filename string) string {
	if mediaType != "application/octet-stream" || filename == "" {
		return mediaType
	}
	byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if byExt == "" {
		return mediaType
	}
	if t, _, err := mime.ParseMediaType(byExt); err == nil {
		return t
	}
	return mediaType
}

var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "ul": true, "ol": true, "blockquote": true, "pre": true, "hr": true,
}

// htmlText returns the visible text of an HTML document with whitespace
// collapsed. Script and style contents are dropped.
func htmlText(data []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(data))

	var sb strings.Builder
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.Join(strings.Fields(sb.String()), " "), nil
			}
			return "", fmt.Errorf("failed to tokenize html: %w", z.Err())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tt == html.StartTagToken && (tag == "script" || tag == "style") {
				hidden++
			}
			if blockTags[tag] {
				sb.WriteByte(' ')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && hidden > 0 {
				hidden--
			}
			if blockTags[tag] {
				sb.WriteByte(' ')
			}

		case html.TextToken:
			if hidden == 0 {
				sb.Write(z.Text())
			}
		}
	}
}
