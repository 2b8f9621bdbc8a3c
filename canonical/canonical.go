// Package canonical encodes values as canonical JSON (RFC 8785): object keys
// are sorted, arrays keep their order, there is no insignificant whitespace
// and HTML characters are not escaped. Equal data always encodes to identical
// bytes, which makes the output suitable as MAC input.
package canonical

import (
	"encoding/json"

	"github.com/gowebpki/jcs"
	"github.com/pkg/errors"
)

// Marshal returns the canonical encoding of v. v is first encoded with
// encoding/json, so struct tags and json.Marshaler implementations are
// honored; the result is then transformed into its canonical form.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "canonical: encoding value")
	}

	b, err := jcs.Transform(raw)
	if err != nil {
		return nil, errors.Wrap(err, "canonical: transforming value")
	}
	return b, nil
}
