// Package parser extracts routing envelopes from inbound email webhook posts.
//
// Inbound mail arrives as a multipart or urlencoded form POST in the SendGrid
// Inbound Parse layout. The routing engine only needs the addressing facts,
// so the parser reduces the payload to an Envelope and leaves body and
// attachment content untouched.
package parser

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/emersion/go-message/mail"

	apperrors "email-router/internal/common/errors"
)

// maxInboundFormMemory bounds the in-memory portion of a multipart payload.
// Larger parts spill to temporary files.
const maxInboundFormMemory = 32 << 20

// Envelope carries the addressing facts of one inbound message.
type Envelope struct {
	From      string   `json:"from"`                 // Sender address (SMTP envelope when available)
	To        []string `json:"to"`                   // Recipient addresses
	SenderIP  string   `json:"sender_ip,omitempty"`  // Connecting client IP as reported upstream
	Subject   string   `json:"subject,omitempty"`    // Message subject
	SpamScore string   `json:"spam_score,omitempty"` // Upstream spam score, opaque to routing
}

// smtpEnvelope mirrors the JSON carried in the form "envelope" field.
type smtpEnvelope struct {
	To   []string `json:"to"`
	From string   `json:"from"`
}

// ParseInbound extracts an Envelope from an inbound webhook request.
//
// The SMTP envelope field is preferred when present because it holds the
// actual delivery addresses. The from/to header fields are the fallback and
// may carry display-name forms, which reduce to the bare address.
func ParseInbound(r *http.Request) (*Envelope, error) {
	if err := r.ParseMultipartForm(maxInboundFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, apperrors.ParseError("unable to parse inbound message form", err)
	}

	envelope := &Envelope{
		SenderIP:  strings.TrimSpace(r.FormValue("sender_ip")),
		Subject:   r.FormValue("subject"),
		SpamScore: strings.TrimSpace(r.FormValue("spam_score")),
	}

	if raw := r.FormValue("envelope"); raw != "" {
		var smtp smtpEnvelope
		if err := json.Unmarshal([]byte(raw), &smtp); err != nil {
			return nil, apperrors.ParseError("invalid envelope field in inbound message", err).
				WithContext("envelope", raw)
		}
		envelope.From = strings.TrimSpace(smtp.From)
		for _, addr := range smtp.To {
			if trimmed := strings.TrimSpace(addr); trimmed != "" {
				envelope.To = append(envelope.To, trimmed)
			}
		}
	}

	// Header-style fields fill whatever the SMTP envelope did not provide
	if envelope.From == "" {
		if raw := r.FormValue("from"); raw != "" {
			addresses, err := parseAddressTerm("From", raw)
			if err != nil {
				return nil, apperrors.ParseError("invalid from address in inbound message", err).
					WithContext("from", raw)
			}
			if len(addresses) > 0 {
				envelope.From = addresses[0]
			}
		}
	}

	if len(envelope.To) == 0 {
		if raw := r.FormValue("to"); raw != "" {
			addresses, err := parseAddressTerm("To", raw)
			if err != nil {
				return nil, apperrors.ParseError("invalid to address in inbound message", err).
					WithContext("to", raw)
			}
			envelope.To = addresses
		}
	}

	if envelope.From == "" {
		return nil, apperrors.ParseError("inbound message has no sender address", nil)
	}
	if len(envelope.To) == 0 {
		return nil, apperrors.ParseError("inbound message has no recipient addresses", nil)
	}

	return envelope, nil
}

// parseAddressTerm reduces a header-style address list to bare addresses.
// Display-name forms like `"Bob" <bob@acme.com>` yield bob@acme.com.
func parseAddressTerm(field, raw string) ([]string, error) {
	var header mail.Header
	header.Set(field, raw)

	list, err := header.AddressList(field)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(list))
	for _, entry := range list {
		if entry.Address != "" {
			addresses = append(addresses, entry.Address)
		}
	}
	return addresses, nil
}
