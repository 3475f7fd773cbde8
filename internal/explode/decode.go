package explode

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

var (
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
	xmlEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*\bencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
)

// isText reports whether a manifest media type holds a document or a
// stylesheet rather than binary data.
func isText(mediaType string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/xml", strings.HasSuffix(mediaType, "+xml"):
		return !strings.HasPrefix(mediaType, "image/")
	}
	return false
}

// decodeText converts a document to UTF-8. The declared encoding of an
// XML document wins; otherwise valid UTF-8 is taken as is and anything else
// goes through HTML charset sniffing.
func decodeText(data []byte, mediaType string) (string, error) {
	if bytes.HasPrefix(data, []byte{0xFE, 0xFF}) || bytes.HasPrefix(data, []byte{0xFF, 0xFE}) {
		enc, _, _ := charset.DetermineEncoding(data, mediaType)
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(bytes.TrimPrefix(out, utf8BOM)), nil
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if m := xmlEncoding.FindSubmatch(data); m != nil {
		if enc, name := charset.Lookup(string(m[1])); enc != nil && name != "utf-8" {
			out, err := enc.NewDecoder().Bytes(data)
			if err != nil {
				return "", err
			}
			return string(out), nil
		}
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	enc, _, _ := charset.DetermineEncoding(data, mediaType)
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
