// Package document turns protocol files on disk into plain text for the
// feature extractor.
package document

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// MaxDocumentBytes caps how much of a file is read.
const MaxDocumentBytes = 16 << 20

// Format is a supported input encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "section": true, "article": true, "header": true,
	"footer": true, "blockquote": true, "pre": true, "hr": true, "dt": true, "dd": true,
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// FormatOf picks a format from the file extension.  Unknown extensions are
// read as plain text.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// LoadFile reads a protocol document and returns its text.
func LoadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDocumentUnreadable, "cannot open document").WithDetail(path)
	}
	defer f.Close()
	return Load(ctx, f, FormatOf(path))
}

// Load reads r in the given format.  Text and markdown pass through
// unchanged apart from line-ending normalisation.
func Load(ctx context.Context, r io.Reader, format Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDocumentUnreadable, "cannot read document")
	}
	if len(data) > MaxDocumentBytes {
		return "", errors.New(errors.ErrCodeDocumentUnreadable, "document too large")
	}
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}

	var text string
	if format == FormatHTML {
		text, err = htmlText(data)
		if err != nil {
			return "", err
		}
	} else {
		text = strings.ReplaceAll(string(data), "\r\n", "\n")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New(errors.ErrCodeDocumentUnreadable, "document is empty")
	}
	return text, nil
}

// htmlText drops script and style content and breaks lines at block
// elements so the line-oriented extractors still see one criterion per line.
func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDocumentUnreadable, "cannot parse HTML")
	}
	doc.Find("script, style, noscript, head").Remove()

	var b strings.Builder
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	for _, n := range root.Nodes {
		walk(&b, n)
	}

	lines := strings.Split(b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(strings.Join(strings.Fields(l), " "))
	}
	out := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out) + "\n", nil
}

func walk(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if blockElements[n.Data] {
			b.WriteByte('\n')
		}
		if n.Data == "li" {
			b.WriteString("* ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(b, c)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}
