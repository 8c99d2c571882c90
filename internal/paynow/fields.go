package paynow

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
)

// ErrHashMismatch is returned when a message fails integrity verification.
var ErrHashMismatch = errors.New("paynow: hash mismatch")

// Field is a single key/value pair of a Paynow message.
type Field struct {
	Key   string
	Value string
}

// Fields is an ordered Paynow message. Order matters because the integrity
// hash is computed over the values in transmission order.
type Fields []Field

// ParseFields decodes a form-encoded Paynow message preserving field order.
func ParseFields(raw string) (Fields, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, "&")
	fs := make(Fields, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, errors.Wrapf(err, "decode key %q", k)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, errors.Wrapf(err, "decode value of %q", key)
		}
		fs = append(fs, Field{Key: key, Value: value})
	}
	return fs, nil
}

// Get returns the value of the first field named key, compared
// case-insensitively.
func (fs Fields) Get(key string) string {
	for _, f := range fs {
		if strings.EqualFold(f.Key, key) {
			return f.Value
		}
	}
	return ""
}

// Encode renders the fields as a form body in order.
func (fs Fields) Encode() string {
	var b strings.Builder
	for i, f := range fs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

// Hash computes the Paynow integrity hash: uppercase hex SHA-512 over every
// value except the hash itself, followed by the integration key.
func (fs Fields) Hash(integrationKey string) string {
	h := sha512.New()
	for _, f := range fs {
		if strings.EqualFold(f.Key, "hash") {
			continue
		}
		h.Write([]byte(f.Value))
	}
	h.Write([]byte(integrationKey))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// Sign appends the hash field.
func (fs Fields) Sign(integrationKey string) Fields {
	return append(fs, Field{Key: "hash", Value: fs.Hash(integrationKey)})
}

// Verify checks the message's hash field against the integration key.
func (fs Fields) Verify(integrationKey string) error {
	got := strings.ToUpper(fs.Get("hash"))
	if got == "" {
		return ErrHashMismatch
	}
	want := fs.Hash(integrationKey)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrHashMismatch
	}
	return nil
}
