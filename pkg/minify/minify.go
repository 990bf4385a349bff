package minify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"golang.org/x/net/html"
)

// Options control how aggressively HTML is minified.
type Options struct {
	// SkipCodeBlocks leaves the contents of pre, code and textarea
	// elements untouched. Script and style bodies are always left
	// verbatim regardless of this setting, since collapsing their
	// whitespace can change meaning.
	SkipCodeBlocks bool

	// CopyButton injects a copy-to-clipboard button into each pre
	// element that directly wraps a code element. The button carries
	// class "copy-code" and a data-copy attribute for page scripts to
	// hook onto.
	CopyButton bool
}

// copyButton is the markup injected between a pre opener and its code
// child when Options.CopyButton is set.
const copyButton = `<button type="button" class="copy-code" data-copy>Copy</button>`

var spaceRun = regexp.MustCompile(`[ \t\r\n\f]+`)

// HTML minifies src token by token: whitespace runs in text nodes
// collapse to a single space, comments are dropped, and everything
// else passes through unchanged. Entity references survive because the
// raw token bytes are written, never the decoded text.
func HTML(src []byte, opts Options) ([]byte, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	var out bytes.Buffer
	out.Grow(len(src))

	verbatimDepth := 0
	pendingPre := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tokenize html: %w", err)
			}
			return out.Bytes(), nil

		case html.TextToken:
			raw := z.Raw()
			if pendingPre && len(bytes.TrimSpace(raw)) > 0 {
				// Non-whitespace text means this pre holds prose, not a
				// code child; no button.
				pendingPre = false
			}
			if verbatimDepth > 0 {
				out.Write(raw)
				break
			}
			out.Write(spaceRun.ReplaceAll(raw, []byte(" ")))

		case html.CommentToken:
			// Dropped.

		case html.StartTagToken:
			// TagName scribbles on the tokenizer's buffer, so the raw
			// bytes are copied first to keep the tag byte-identical.
			raw := append([]byte(nil), z.Raw()...)
			name, _ := z.TagName()
			tag := string(name)

			if pendingPre {
				if opts.CopyButton && tag == "code" {
					out.WriteString(copyButton)
				}
				pendingPre = false
			}
			out.Write(raw)

			if isVerbatim(tag, opts) {
				verbatimDepth++
			}
			if opts.CopyButton && tag == "pre" {
				pendingPre = true
			}

		case html.EndTagToken:
			raw := append([]byte(nil), z.Raw()...)
			name, _ := z.TagName()
			if isVerbatim(string(name), opts) && verbatimDepth > 0 {
				verbatimDepth--
			}
			pendingPre = false
			out.Write(raw)

		default:
			// Doctype and self-closing tags pass through.
			pendingPre = false
			out.Write(z.Raw())
		}
	}
}

// isVerbatim reports whether the element's contents must not be
// reformatted.
func isVerbatim(tag string, opts Options) bool {
	switch tag {
	case "script", "style":
		return true
	case "pre", "code", "textarea":
		return opts.SkipCodeBlocks
	}
	return false
}
