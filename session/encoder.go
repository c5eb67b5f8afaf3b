package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const entryFormatVersionCurrent = 1

// encodedEntrySize is version(1) + key(32) + created_at(8) + expires_at(8).
const encodedEntrySize = 1 + KeySize + 8 + 8

// expiresAtOffset is the 1-based Lua string offset of expires_at.
const expiresAtOffset = 1 + 1 + KeySize + 8

var (
	errInvalidEntryVersion = errors.New("invalid session entry version")
	errInvalidEntrySize    = errors.New("invalid session entry size")
)

// Encode serializes e into its fixed-size binary form.
func Encode(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(encodedEntrySize)

	buf.WriteByte(entryFormatVersionCurrent)
	buf.Write(e.Key[:])

	if err := binary.Write(&buf, binary.BigEndian, e.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, e.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses an entry produced by [Encode].
func Decode(data []byte) (*Entry, error) {
	if len(data) != encodedEntrySize {
		return nil, errInvalidEntrySize
	}
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != entryFormatVersionCurrent {
		return nil, errInvalidEntryVersion
	}

	e := &Entry{}
	if _, err := io.ReadFull(reader, e.Key[:]); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &e.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &e.ExpiresAt); err != nil {
		return nil, err
	}

	return e, nil
}
