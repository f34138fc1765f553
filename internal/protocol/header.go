package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxHeaderSize = 4096

// WriteHeader writes one newline-terminated JSON frame. Relay payload
// streams start with exactly one header; raw bytes follow.
func WriteHeader(w io.Writer, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadHeader reads a single newline-terminated JSON frame byte by byte,
// so no payload bytes after the header are consumed from r.
func ReadHeader(r io.Reader) (Message, error) {
	var msg Message
	var buf bytes.Buffer
	one := make([]byte, 1)

	for {
		if _, err := r.Read(one); err != nil {
			return msg, err
		}
		if one[0] == '\n' {
			break
		}
		buf.WriteByte(one[0])
		if buf.Len() > maxHeaderSize {
			return msg, fmt.Errorf("stream header exceeds %d bytes", maxHeaderSize)
		}
	}

	if err := json.Unmarshal(buf.Bytes(), &msg); err != nil {
		return msg, fmt.Errorf("malformed stream header: %w", err)
	}
	return msg, nil
}
