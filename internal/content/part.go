package content

import "strings"

// Part is one node of a message's MIME tree. The concrete types are
// *TextPart, *Multipart, *EmbeddedMessage and *OpaquePart.
type Part interface {
	part()
}

// TextPart is a textual leaf with its payload already decoded.
type TextPart struct {
	MediaType string
	Text      string
}

// Multipart is a container whose children are kept in part order.
type Multipart struct {
	Subtype string
	Parts   []Part
}

// Alternative reports whether the children are equivalent renderings of
// the same content.
func (m *Multipart) Alternative() bool {
	return strings.EqualFold(m.Subtype, "alternative")
}

// EmbeddedMessage is a message/rfc822 part.
type EmbeddedMessage struct {
	Message *Document
}

// OpaquePart is any other leaf. Its text, if any, comes from an Extractor.
type OpaquePart struct {
	MediaType string
	Filename  string
	Data      []byte
}

func (*TextPart) part()        {}
func (*Multipart) part()       {}
func (*EmbeddedMessage) part() {}
func (*OpaquePart) part()      {}

// Document is a parsed message.
type Document struct {
	Subject string
	Root    Part

	// Warnings lists recoverable decoding problems, such as an unknown
	// charset whose raw bytes were used instead.
	Warnings []string
}
