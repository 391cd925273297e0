package probe

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxExtractBodyBytes = 1 << 20 // 1 MiB

// ErrBodyTooLarge is returned when a response exceeds the size Extract will parse.
var ErrBodyTooLarge = errors.New("response body too large for selector extraction")

// Extract returns the trimmed text of every element matching selector.
// The gateway's xml and html formats both go through goquery's HTML parser,
// which lowercases element names, so selectors should be lowercase too.
func Extract(body []byte, selector string) ([]string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("selector is empty")
	}
	if len(body) > maxExtractBodyBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrBodyTooLarge, len(body), maxExtractBodyBytes)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out, nil
}
