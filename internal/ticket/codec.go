// Package ticket encodes and verifies the signed tokens carried in handoff
// QR codes.
//
// A token is base64(JSON payload) + "." + hex(HMAC-SHA256(secret, base64)).
// The JSON keys appear in the order ticketId, collectionId, userId,
// expiresAt; userId is null when the ticket is not bound to a user and
// expiresAt is an ISO-8601 UTC timestamp with millisecond precision.
// Tokens minted by earlier deployments use exactly this layout, so any
// change here breaks scanning of tickets already printed.
package ticket

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// TimeLayout is the wire layout of expiresAt.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrMalformed means the token is not two dot-separated parts or the
	// payload does not decode.
	ErrMalformed = errors.New("malformed ticket token")
	// ErrBadSignature means the HMAC does not match the payload.
	ErrBadSignature = errors.New("ticket signature mismatch")
)

// Payload is the signed content of a token.
type Payload struct {
	TicketID     string
	CollectionID string
	UserID       *string
	ExpiresAt    time.Time
}

// wirePayload fixes the JSON key order.
type wirePayload struct {
	TicketID     string  `json:"ticketId"`
	CollectionID string  `json:"collectionId"`
	UserID       *string `json:"userId"`
	ExpiresAt    string  `json:"expiresAt"`
}

// Codec signs and verifies tokens with one secret.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec keyed by secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serialises and signs p.
func (c *Codec) Encode(p Payload) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(wirePayload{
		TicketID:     p.TicketID,
		CollectionID: p.CollectionID,
		UserID:       p.UserID,
		ExpiresAt:    p.ExpiresAt.UTC().Format(TimeLayout),
	})
	if err != nil {
		return "", err
	}
	body := base64.StdEncoding.EncodeToString(bytes.TrimRight(buf.Bytes(), "\n"))
	return body + "." + c.sign(body), nil
}

// Decode checks the signature of token and returns its payload.  It does
// not look at the expiry; callers compare ExpiresAt against their clock.
func (c *Codec) Decode(token string) (Payload, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Payload{}, ErrMalformed
	}
	body, sig := parts[0], parts[1]

	want, err := hex.DecodeString(c.sign(body))
	if err != nil {
		return Payload{}, err
	}
	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil || !hmac.Equal(got, want) {
		return Payload{}, ErrBadSignature
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(body)
		if err != nil {
			return Payload{}, ErrMalformed
		}
	}
	var w wirePayload
	if err := json.Unmarshal(raw, &w); err != nil {
		return Payload{}, ErrMalformed
	}
	if w.TicketID == "" || w.CollectionID == "" {
		return Payload{}, ErrMalformed
	}
	exp, err := time.Parse(time.RFC3339Nano, w.ExpiresAt)
	if err != nil {
		return Payload{}, ErrMalformed
	}
	return Payload{
		TicketID:     w.TicketID,
		CollectionID: w.CollectionID,
		UserID:       w.UserID,
		ExpiresAt:    exp.UTC(),
	}, nil
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}
