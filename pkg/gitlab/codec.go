package gitlab

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// base64 of an "<mxfile" prefix, the signature of a diagram document
// stored as plain base64 text.
const diagramBase64Prefix = "PG14ZmlsZS"

type PayloadKind int

const (
	// PayloadText is decoded plain content.
	PayloadText PayloadKind = iota
	// PayloadDiagram is diagram XML, possibly recovered from a PNG wrapper.
	PayloadDiagram
	// PayloadDataURI keeps the provider's base64 wrapped as a data URI.
	PayloadDataURI
)

// Payload is a provider file body in the editor's representation.
type Payload struct {
	Kind    PayloadKind
	Content string
}

// PNGExporter renders diagram XML into a PNG image with the model
// embedded, typically backed by the host editor's canvas export.
type PNGExporter func(xml string) ([]byte, error)

var pngExt = regexp.MustCompile(`(?i)\.png$`)

type codecRule struct {
	match  func(name, content string) bool
	decode func(name, content string) (Payload, error)
}

func extMatch(pattern string) func(name, content string) bool {
	re := regexp.MustCompile(pattern)
	return func(name, _ string) bool { return re.MatchString(name) }
}

// Rules are tried in priority order; the first match owns the record.
var codecRules = []codecRule{
	{
		match: func(_, content string) bool {
			return strings.HasPrefix(content, diagramBase64Prefix)
		},
		decode: func(_, content string) (Payload, error) {
			raw, err := base64.StdEncoding.DecodeString(content)
			if err != nil {
				return Payload{}, errors.Wrap(err, "decode diagram content")
			}
			return Payload{Kind: PayloadDiagram, Content: string(raw)}, nil
		},
	},
	{
		match: extMatch(`(?i)\.jpe?g$`),
		decode: func(_, content string) (Payload, error) {
			return Payload{Kind: PayloadDataURI, Content: "data:image/jpeg;base64," + content}, nil
		},
	},
	{
		match: extMatch(`(?i)\.gif$`),
		decode: func(_, content string) (Payload, error) {
			return Payload{Kind: PayloadDataURI, Content: "data:image/gif;base64," + content}, nil
		},
	},
	{
		match: func(name, _ string) bool { return pngExt.MatchString(name) },
		decode: func(name, content string) (Payload, error) {
			raw, err := base64.StdEncoding.DecodeString(content)
			if err != nil {
				return Payload{}, errors.Wrap(err, "decode png content")
			}
			xml, err := ExtractDiagram(raw)
			if err != nil {
				zap.L().Debug("png without readable metadata", zap.String("name", name), zap.Error(err))
			}
			if xml != "" {
				return Payload{Kind: PayloadDiagram, Content: xml}, nil
			}
			return Payload{Kind: PayloadDataURI, Content: "data:image/png;base64," + content}, nil
		},
	},
	{
		match: func(_, _ string) bool { return true },
		decode: func(_, content string) (Payload, error) {
			raw, err := base64.StdEncoding.DecodeString(content)
			if err != nil {
				return Payload{}, errors.Wrap(err, "decode file content")
			}
			return Payload{Kind: PayloadText, Content: string(raw)}, nil
		},
	},
}

// DecodeContent converts a provider file record into the editor payload.
func DecodeContent(f *RepoFile) (Payload, error) {
	if f.Encoding != "base64" {
		return Payload{Kind: PayloadText, Content: f.Content}, nil
	}
	for _, rule := range codecRules {
		if rule.match(f.FileName, f.Content) {
			return rule.decode(f.FileName, f.Content)
		}
	}
	return Payload{Kind: PayloadText, Content: f.Content}, nil
}

// EncodeContent is the save-path inverse of DecodeContent: the result is
// always base64. A diagram aimed at a .png target goes through the
// exporter when one is configured, so the stored image carries the model.
func EncodeContent(p Payload, filename string, export PNGExporter) (string, error) {
	switch p.Kind {
	case PayloadDataURI:
		if idx := strings.Index(p.Content, ";base64,"); idx >= 0 {
			return p.Content[idx+len(";base64,"):], nil
		}
		return "", errors.Errorf("unsupported data uri in %s", filename)
	case PayloadDiagram:
		if export != nil && pngExt.MatchString(filename) {
			img, err := export(p.Content)
			if err != nil {
				return "", errors.Wrap(err, "export png")
			}
			return base64.StdEncoding.EncodeToString(img), nil
		}
		return base64.StdEncoding.EncodeToString([]byte(p.Content)), nil
	default:
		return base64.StdEncoding.EncodeToString([]byte(p.Content)), nil
	}
}
