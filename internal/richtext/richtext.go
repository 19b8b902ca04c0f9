// Package richtext derives plain text, excerpts, reading time and hashtags
// from stored content bodies. A body is block-editor JSON, HTML or Markdown.
package richtext

import (
	"encoding/json"
	"html"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Format is the detected markup of a body.
type Format string

const (
	Blocks   Format = "blocks"
	HTML     Format = "html"
	Markdown Format = "markdown"
)

const (
	// WordsPerMinute drives ReadingTime.
	WordsPerMinute = 200
	// ExcerptLength is the default excerpt size in runes.
	ExcerptLength = 160
)

var (
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	htmlTagRe  = regexp.MustCompile(`<[^>]+>`)
	mdLinkRe   = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdMarkRe   = regexp.MustCompile("(?m)^\\s{0,3}(#{1,6}\\s+|>\\s?|[-*+]\\s+|\\d+\\.\\s+)")
	mdEmphRe   = regexp.MustCompile("[*_`~]+")
	blankRunRe = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Result is everything derived from one body.
type Result struct {
	Format Format
	Text   string
	Words  int
	Tags   []string
}

// Parse detects the format of content and extracts its plain text.
func Parse(content string) *Result {
	format, text := plain(content)
	text = strings.TrimSpace(blankRunRe.ReplaceAllString(text, " "))
	tagSource := text
	if format == Markdown {
		// Emphasis stripping would eat underscores inside tags.
		tagSource = content
	}
	return &Result{
		Format: format,
		Text:   text,
		Words:  len(strings.Fields(text)),
		Tags:   extractTags(tagSource),
	}
}

// ReadingTime returns whole minutes at WordsPerMinute, at least 1.
func (r *Result) ReadingTime() int {
	minutes := int(math.Ceil(float64(r.Words) / WordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Excerpt returns at most n runes of the text, cut at a word boundary when
// possible and marked with an ellipsis when shortened.
func (r *Result) Excerpt(n int) string {
	if utf8.RuneCountInString(r.Text) <= n {
		return r.Text
	}
	runes := []rune(r.Text)[:n]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "…"
}

func plain(content string) (Format, string) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		if text, ok := blocksText(trimmed); ok {
			return Blocks, text
		}
	}
	if htmlTagRe.MatchString(trimmed) && strings.Contains(trimmed, "</") {
		return HTML, stripHTML(trimmed)
	}
	return Markdown, stripMarkdown(trimmed)
}

type editorDoc struct {
	Blocks []struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	} `json:"blocks"`
}

type blockData struct {
	Text    string            `json:"text"`
	Caption string            `json:"caption"`
	Code    string            `json:"code"`
	Items   []json.RawMessage `json:"items"`
	Content [][]string        `json:"content"`
}

// blocksText flattens block-editor output: {"blocks":[{"type","data"}]}.
func blocksText(s string) (string, bool) {
	var doc editorDoc
	if err := json.Unmarshal([]byte(s), &doc); err != nil || doc.Blocks == nil {
		return "", false
	}
	var parts []string
	for _, b := range doc.Blocks {
		var d blockData
		if json.Unmarshal(b.Data, &d) != nil {
			continue
		}
		for _, t := range []string{d.Text, d.Code, d.Caption} {
			if t != "" {
				parts = append(parts, stripHTML(t))
			}
		}
		for _, item := range d.Items {
			parts = append(parts, listItemText(item)...)
		}
		for _, row := range d.Content {
			for _, cell := range row {
				parts = append(parts, stripHTML(cell))
			}
		}
	}
	return strings.Join(parts, "\n"), true
}

// listItemText accepts both plain string items and nested list items
// ({"content": "...", "items": [...]}).
func listItemText(raw json.RawMessage) []string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return []string{stripHTML(s)}
	}
	var nested struct {
		Content string            `json:"content"`
		Items   []json.RawMessage `json:"items"`
	}
	if json.Unmarshal(raw, &nested) != nil {
		return nil
	}
	out := []string{stripHTML(nested.Content)}
	for _, child := range nested.Items {
		out = append(out, listItemText(child)...)
	}
	return out
}

func stripHTML(s string) string {
	s = strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ", "</p>", " ", "</li>", " ").Replace(s)
	return html.UnescapeString(htmlTagRe.ReplaceAllString(s, ""))
}

func stripMarkdown(s string) string {
	s = stripFrontmatter(s)
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = mdMarkRe.ReplaceAllString(s, "")
	return mdEmphRe.ReplaceAllString(s, "")
}

// stripFrontmatter drops a leading YAML block between --- delimiters.
func stripFrontmatter(s string) string {
	const delim = "---"
	if !strings.HasPrefix(s, delim) {
		return s
	}
	rest := s[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return s
	}
	return strings.TrimLeft(rest[idx+1+len(delim):], "\n\r")
}

// extractTags returns deduplicated #hashtags in order of appearance.
func extractTags(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		t := m[1]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
