// Package keyformat encodes encryption keys for humans and other devices:
// as JSON, as dash separated base32 text for printing and retyping, and as a
// QR code for scanning.
//
// Encoded keys carry a version tag that maps to the key's algorithm. Versions
// are only ever added, so keys issued under an old version stay decodable.
package keyformat

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/jcarver989/lockbox/canonical"
	"github.com/jcarver989/lockbox/crypto/envelope"
	"github.com/multiformats/go-base32"
	"github.com/pkg/errors"
)

// ErrFormat is returned when text can't be decoded into a key.
var ErrFormat = errors.New("keyformat: malformed key")

// groupSize is the number of base32 characters between dashes.
const groupSize = 5

var versions = []struct {
	version   string
	algorithm envelope.Algorithm
}{
	{"V1", envelope.XSalsa20Poly1305},
}

var (
	versionToAlgorithm = make(map[string]envelope.Algorithm, len(versions))
	algorithmToVersion = make(map[envelope.Algorithm]string, len(versions))
)

func init() {
	for _, v := range versions {
		versionToAlgorithm[v.version] = v.algorithm
		algorithmToVersion[v.algorithm] = v.version
	}
}

// ToJSONString encodes key as {"algorithm":...,"key":<base64>}.
func ToJSONString(key envelope.EncryptionKey) (string, error) {
	if _, ok := algorithmToVersion[key.Algorithm]; !ok {
		return "", errors.Errorf("keyformat: unsupported algorithm %q", key.Algorithm)
	}
	b, err := canonical.Marshal(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromJSONString decodes a key encoded with ToJSONString.
func FromJSONString(s string) (envelope.EncryptionKey, error) {
	var key envelope.EncryptionKey
	if err := json.Unmarshal([]byte(s), &key); err != nil {
		return envelope.EncryptionKey{}, errors.Wrap(ErrFormat, err.Error())
	}
	if _, ok := algorithmToVersion[key.Algorithm]; !ok {
		return envelope.EncryptionKey{}, errors.Wrapf(ErrFormat, "unknown algorithm %q", key.Algorithm)
	}
	if len(key.Key) == 0 {
		return envelope.EncryptionKey{}, errors.Wrap(ErrFormat, "empty key")
	}
	return key, nil
}

// ToBase32 encodes key as its version tag followed by the uppercase base32
// encoding of the key bytes, in dash separated groups of five:
//
//	V1-ONSWG-4TFOQ-WWWZL-ZFUYT-EMY=
func ToBase32(key envelope.EncryptionKey) (string, error) {
	version, ok := algorithmToVersion[key.Algorithm]
	if !ok {
		return "", errors.Errorf("keyformat: unsupported algorithm %q", key.Algorithm)
	}

	encoded := base32.StdEncoding.EncodeToString(key.Key)

	groups := make([]string, 0, len(encoded)/groupSize+2)
	groups = append(groups, version)
	for len(encoded) > groupSize {
		groups = append(groups, encoded[:groupSize])
		encoded = encoded[groupSize:]
	}
	if encoded != "" {
		groups = append(groups, encoded)
	}
	return strings.Join(groups, "-"), nil
}

// FromBase32 decodes a key encoded with ToBase32. Whitespace anywhere in s
// is ignored and case doesn't matter.
func FromBase32(s string) (envelope.EncryptionKey, error) {
	s = strings.ToUpper(stripSpace(s))

	version, body, ok := strings.Cut(s, "-")
	if !ok {
		return envelope.EncryptionKey{}, errors.Wrap(ErrFormat, "missing version")
	}

	algorithm, ok := versionToAlgorithm[version]
	if !ok {
		return envelope.EncryptionKey{}, errors.Wrapf(ErrFormat, "unknown version %q", version)
	}

	body = strings.ReplaceAll(body, "-", "")
	if body == "" {
		return envelope.EncryptionKey{}, errors.Wrap(ErrFormat, "empty key")
	}

	b, err := base32.StdEncoding.DecodeString(body)
	if err != nil {
		return envelope.EncryptionKey{}, errors.Wrap(ErrFormat, err.Error())
	}
	if len(b) == 0 {
		return envelope.EncryptionKey{}, errors.Wrap(ErrFormat, "empty key")
	}

	return envelope.EncryptionKey{Algorithm: algorithm, Key: b}, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
