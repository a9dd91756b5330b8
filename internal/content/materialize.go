// Package content flattens a message's MIME tree into plain text.
package content

import (
	"bytes"
	"fmt"
	"strings"
)

// Extractor converts a non-text payload into best-effort plain text.
// Returning empty text is not an error.
type Extractor interface {
	Extract(mediaType, filename string, data []byte) (string, error)
}

// Materializer walks part trees. Text leaves are taken as they are, other
// leaves are handed to the Extractor.
type Materializer struct {
	extractor Extractor
}

// NewMaterializer uses DefaultExtractor when ex is nil.
func NewMaterializer(ex Extractor) *Materializer {
	if ex == nil {
		ex = DefaultExtractor{}
	}
	return &Materializer{extractor: ex}
}

// Materialize returns the concatenated text of doc's body, each leaf
// followed by a space. Only the first child of a multipart/alternative is
// used. The first failing leaf fails the whole document.
func (m *Materializer) Materialize(doc *Document) (string, error) {
	var sb strings.Builder
	if err := m.visit(doc.Root, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// MaterializeRaw parses raw and returns the document with its body text.
func (m *Materializer) MaterializeRaw(raw []byte) (*Document, string, error) {
	doc, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	text, err := m.Materialize(doc)
	if err != nil {
		return nil, "", err
	}
	return doc, text, nil
}

func (m *Materializer) visit(p Part, sb *strings.Builder) error {
	switch p := p.(type) {
	case nil:
		return nil

	case *TextPart:
		sb.WriteString(p.Text)
		sb.WriteByte(' ')

	case *Multipart:
		children := p.Parts
		if p.Alternative() && len(children) > 1 {
			children = children[:1]
		}
		for _, child := range children {
			if err := m.visit(child, sb); err != nil {
				return err
			}
		}

	case *EmbeddedMessage:
		return m.visit(p.Message.Root, sb)

	case *OpaquePart:
		text, err := m.extractor.Extract(p.MediaType, p.Filename, p.Data)
		if err != nil {
			return fmt.Errorf("failed to extract text from %s part %q: %w", p.MediaType, p.Filename, err)
		}
		sb.WriteString(text)
		sb.WriteByte(' ')

	default:
		return fmt.Errorf("unexpected part type %T", p)
	}

	return nil
}
