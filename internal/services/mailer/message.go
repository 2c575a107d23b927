package mailer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is a single outgoing email with a plain text body and an optional HTML alternative
type Message struct {
	From     string
	FromName string
	To       []string
	Subject  string
	Text     string
	HTML     string
	Date     time.Time
}

// ParseRecipients parses a comma-delimited recipient list. Display names are allowed.
func ParseRecipients(list []string) ([]*mail.Address, error) {
	var out []*mail.Address
	for _, entry := range list {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addrs, err := mail.ParseAddressList(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", entry, err)
		}
		out = append(out, addrs...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	return out, nil
}

// Compose renders m as an RFC 5322 message. Bodies are base64 encoded so long Thai lines survive
// relays that enforce line limits.
func Compose(m Message) ([]byte, error) {
	to, err := ParseRecipients(m.To)
	if err != nil {
		return nil, err
	}
	if m.From == "" {
		return nil, fmt.Errorf("from address not configured")
	}

	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Name: m.FromName, Address: m.From}})
	h.SetAddressList("To", to)
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	if m.HTML == "" {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		h.Set("Content-Transfer-Encoding", "base64")
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message writer: %w", err)
		}
		if _, err := w.Write([]byte(m.Text)); err != nil {
			return nil, fmt.Errorf("failed to write body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close message: %w", err)
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create alternative part: %w", err)
	}
	if err := writePart(iw, "text/plain", m.Text); err != nil {
		return nil, err
	}
	if err := writePart(iw, "text/html", m.HTML); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close alternative part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(iw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "base64")
	w, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}
