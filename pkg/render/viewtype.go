package render

import (
	"fmt"
	"regexp"
	"strings"
)

// ViewType identifies the output format of a view. The set is closed:
// each type maps to a file extension under the views root and to the
// Content-Type header the response carries.
type ViewType string

const (
	TypeHTML ViewType = "html"
	TypeJSON ViewType = "json"
	TypeText ViewType = "text"
	TypeXML  ViewType = "xml"
	TypeJS   ViewType = "js"
	TypeCSS  ViewType = "css"
	TypeRDF  ViewType = "rdf"
	TypeAtom ViewType = "atom"
	TypeRSS  ViewType = "rss"
	TypeBin  ViewType = "bin"
)

// ParseViewType maps a type name to its ViewType. Matching is
// case-insensitive and "txt" is accepted as an alias for text.
// Unknown names fail with ErrUnsupportedViewType.
func ParseViewType(s string) (ViewType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html":
		return TypeHTML, nil
	case "json":
		return TypeJSON, nil
	case "text", "txt":
		return TypeText, nil
	case "xml":
		return TypeXML, nil
	case "js":
		return TypeJS, nil
	case "css":
		return TypeCSS, nil
	case "rdf":
		return TypeRDF, nil
	case "atom":
		return TypeAtom, nil
	case "rss":
		return TypeRSS, nil
	case "bin":
		return TypeBin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedViewType, s)
}

// ContentType returns the Content-Type header value for responses of
// this type.
func (vt ViewType) ContentType() string {
	switch vt {
	case TypeHTML:
		return "text/html; charset=utf-8"
	case TypeJSON:
		return "application/json"
	case TypeText:
		return "text/plain; charset=utf-8"
	case TypeXML:
		return "application/xml"
	case TypeJS:
		return "text/javascript; charset=utf-8"
	case TypeCSS:
		return "text/css; charset=utf-8"
	case TypeRDF:
		return "application/rdf+xml"
	case TypeAtom:
		return "application/atom+xml"
	case TypeRSS:
		return "application/rss+xml"
	}
	return "application/octet-stream"
}

// Ext returns the file extension view files of this type use, without
// the leading dot.
func (vt ViewType) Ext() string {
	if vt == TypeText {
		return "txt"
	}
	return string(vt)
}

// HTML reports whether the type executes through the escaping HTML
// template set and is eligible for minification.
func (vt ViewType) HTML() bool { return vt == TypeHTML }

func (vt ViewType) String() string { return string(vt) }

var viewNameSegment = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateViewName checks a slash-separated view name: every segment
// must be non-empty and contain only letters, digits, underscores or
// hyphens. This keeps names directly usable as file paths with no
// room for traversal.
func ValidateViewName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidViewName)
	}
	for _, seg := range strings.Split(name, "/") {
		if !viewNameSegment.MatchString(seg) {
			return fmt.Errorf("%w: %q", ErrInvalidViewName, name)
		}
	}
	return nil
}
