package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixID is a 6-byte record identifier stored in BSON as BinData with custom
// subtype 0x80 and rendered for clients as 10 characters of Crockford Base32.
type SixID [6]byte

// bsonSubtypeSixID is the custom BSON binary subtype used for SixID values.
const bsonSubtypeSixID = 0x80

// NewSixID returns a new random SixID.
func NewSixID() SixID {
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand failing is effectively fatal; a zero ID will fail the
		// _id uniqueness check on insert rather than silently collide.
		return SixID{}
	}
	return id
}

// IsZero reports whether the ID is the zero value.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// Crockford Base32 alphabet (uppercase, no I, L, O, U).
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap = func() map[byte]byte {
	m := make(map[byte]byte, 64)
	for i := 0; i < len(crockfordAlphabet); i++ {
		m[crockfordAlphabet[i]] = byte(i)
	}
	lower := strings.ToLower(crockfordAlphabet)
	for i := 10; i < len(lower); i++ {
		m[lower[i]] = byte(i)
	}
	// Commonly confused characters decode leniently.
	m['o'] = m['0']
	m['O'] = m['0']
	m['i'] = m['1']
	m['I'] = m['1']
	m['l'] = m['1']
	m['L'] = m['1']
	return m
}()

// String returns the Crockford Base32 representation (always 10 characters).
func (u SixID) String() string {
	// 48 bits -> ceil(48/5) = 10 characters, little-endian bit packing.
	out := make([]byte, 0, 10)
	var bits uint
	var nbits uint
	for i := 0; i < len(u); i++ {
		bits |= uint(u[i]) << nbits
		nbits += 8
		for nbits >= 5 {
			out = append(out, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			nbits -= 5
		}
	}
	if nbits > 0 {
		out = append(out, crockfordAlphabet[bits&0x1F])
	}
	return string(out)
}

// ParseSixID decodes a Crockford Base32 string produced by String.
// Hyphens and spaces are ignored for leniency.
func ParseSixID(s string) (SixID, error) {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) != 10 {
		return SixID{}, errors.New("invalid SixID: must be 10 Base32 characters")
	}

	var id SixID
	var bits uint64
	var nbits uint
	byteIndex := 0
	for i := 0; i < len(s); i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return SixID{}, errors.New("invalid SixID: unexpected character")
		}
		bits |= uint64(val) << nbits
		nbits += 5
		for nbits >= 8 && byteIndex < len(id) {
			id[byteIndex] = byte(bits & 0xFF)
			byteIndex++
			bits >>= 8
			nbits -= 8
		}
	}
	if byteIndex != len(id) {
		return SixID{}, errors.New("invalid SixID: short decode")
	}
	return id, nil
}

// MarshalBSONValue stores the ID as BinData subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: bsonSubtypeSixID, Data: u[:]})
}

// UnmarshalBSONValue restores the ID from BinData subtype 0x80.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bson.TypeNull {
		*u = SixID{}
		return nil
	}
	var bin primitive.Binary
	if err := bson.UnmarshalValue(t, data, &bin); err != nil {
		return errors.New("invalid BSON type for SixID: expected binary")
	}
	if bin.Subtype != bsonSubtypeSixID || len(bin.Data) != 6 {
		return errors.New("invalid BSON binary for SixID: wrong subtype or length")
	}
	copy((*u)[:], bin.Data)
	return nil
}

// MarshalJSON renders the ID as its Base32 string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON parses the ID from its Base32 string.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
