// Package content validates rich-text post bodies before they leave the
// service and flattens them to the plain text platforms accept.
package content

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const DefaultMaxLength = 10000

var (
	ErrEmpty            = errors.New("content is empty")
	ErrTooLong          = errors.New("content exceeds maximum length")
	ErrDisallowedMarkup = errors.New("content contains disallowed markup")
)

var dangerousPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"script tag", regexp.MustCompile(`(?i)<\s*/?\s*script\b`)},
	{"iframe tag", regexp.MustCompile(`(?i)<\s*/?\s*iframe\b`)},
	{"object tag", regexp.MustCompile(`(?i)<\s*/?\s*object\b`)},
	{"embed tag", regexp.MustCompile(`(?i)<\s*/?\s*embed\b`)},
	{"style tag", regexp.MustCompile(`(?i)<\s*/?\s*style\b`)},
	{"javascript URI", regexp.MustCompile(`(?i)javascript\s*:`)},
	{"data URI", regexp.MustCompile(`(?i)\bdata:[a-z]+/[a-z0-9.+-]+\s*[;,]`)},
	{"data URI attribute", regexp.MustCompile(`(?i)\b(?:src|href|action|srcset)\s*=\s*["']?\s*data\s*:`)},
	{"event handler attribute", regexp.MustCompile(`(?i)<[^>]*\son[a-z]+\s*=`)},
}

// Validator rejects oversized or dangerous content.
type Validator struct {
	MaxLength int
}

func NewValidator(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Validator{MaxLength: maxLength}
}

// Validate checks raw rich text. Length is measured in runes of the raw input.
func (v *Validator) Validate(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrEmpty
	}
	if n := utf8.RuneCountInString(raw); n > v.MaxLength {
		return fmt.Errorf("%w: %d > %d characters", ErrTooLong, n, v.MaxLength)
	}
	for _, p := range dangerousPatterns {
		if p.re.MatchString(raw) {
			return fmt.Errorf("%w: %s", ErrDisallowedMarkup, p.name)
		}
	}
	return nil
}

// Sanitize validates raw and returns its plain-text rendering.
func (v *Validator) Sanitize(raw string) (string, error) {
	if err := v.Validate(raw); err != nil {
		return "", err
	}
	text := ToPlainText(raw)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "hr": true,
}

var collapseBlankLines = regexp.MustCompile(`\n{3,}`)

// ToPlainText strips tags and decodes entities. Block elements become line
// breaks so paragraphs survive the conversion.
func ToPlainText(raw string) string {
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; keep what was read so far.
			return finish(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if !blockTags[tag] {
				continue
			}
			if tag == "li" && tt == html.StartTagToken {
				newline(&b)
				b.WriteString("- ")
				continue
			}
			if tt != html.StartTagToken || tag == "br" || tag == "hr" {
				newline(&b)
			}
		}
	}
}

func newline(b *strings.Builder) {
	s := b.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return
	}
	b.WriteByte('\n')
}

func finish(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	s = collapseBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
