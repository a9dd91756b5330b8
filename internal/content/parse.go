package content

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const maxDepth = 32

var errTooDeep = errors.New("message nesting too deep")

// Parse reads a raw RFC 5322 message into a part tree. Bodies are decoded
// from their transfer encoding and charset. Any other decoding error fails
// the whole message.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{}

	entity, err := message.Read(r)
	if err := doc.tolerate(entity, err); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	if err := doc.fill(entity, 0); err != nil {
		return nil, err
	}
	return doc, nil
}

// tolerate accepts the errors go-message reports alongside a still
// readable entity.
func (d *Document) tolerate(entity *message.Entity, err error) error {
	if err == nil {
		return nil
	}
	if entity != nil && (message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)) {
		d.Warnings = append(d.Warnings, err.Error())
		return nil
	}
	return err
}

func (d *Document) fill(entity *message.Entity, depth int) error {
	header := mail.Header{Header: entity.Header}
	subject, err := header.Subject()
	if err != nil {
		// undecodable encoded-words; keep the raw value
		subject = entity.Header.Get("Subject")
	}
	d.Subject = subject

	root, err := d.parsePart(entity, depth)
	if err != nil {
		return err
	}
	d.Root = root
	return nil
}

func (d *Document) parsePart(entity *message.Entity, depth int) (Part, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}

	mediaType, params, err := entity.Header.ContentType()
	if err != nil || mediaType == "" {
		// RFC 2045 default
		mediaType = "text/plain"
	}
	mediaType = strings.ToLower(mediaType)

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return d.parseMultipart(entity, mediaType, params, depth)

	case mediaType == "message/rfc822":
		inner, err := message.Read(entity.Body)
		if err := d.tolerate(inner, err); err != nil {
			return nil, fmt.Errorf("failed to parse embedded message: %w", err)
		}

		embedded := &Document{}
		if err := embedded.fill(inner, depth+1); err != nil {
			return nil, err
		}
		d.Warnings = append(d.Warnings, embedded.Warnings...)
		return &EmbeddedMessage{Message: embedded}, nil

	case isPlainText(mediaType):
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s body: %w", mediaType, err)
		}
		return &TextPart{MediaType: mediaType, Text: string(body)}, nil

	default:
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s body: %w", mediaType, err)
		}
		filename, _ := (&mail.AttachmentHeader{Header: entity.Header}).Filename()
		return &OpaquePart{MediaType: mediaType, Filename: filename, Data: body}, nil
	}
}

func (d *Document) parseMultipart(entity *message.Entity, mediaType string, params map[string]string, depth int) (Part, error) {
	mp := &Multipart{Subtype: strings.TrimPrefix(mediaType, "multipart/")}

	mr := entity.MultipartReader()
	if mr == nil {
		return nil, fmt.Errorf("%s part without boundary %q", mediaType, params["boundary"])
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break // done reading parts
		}
		if err := d.tolerate(part, err); err != nil {
			return nil, fmt.Errorf("failed to read %s child %d: %w", mediaType, len(mp.Parts)+1, err)
		}

		child, err := d.parsePart(part, depth+1)
		if err != nil {
			return nil, err
		}
		mp.Parts = append(mp.Parts, child)
	}

	return mp, nil
}

// isPlainText covers text/* except markup, which needs extraction.
func isPlainText(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/") && mediaType != "text/html"
}
