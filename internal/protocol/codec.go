package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// MaxRequestSize bounds the decompressed request body
const MaxRequestSize = 4 << 20

// ReadRequest reads one gzip member from r and decodes the envelope.
func ReadRequest(r io.Reader) (*Request, error) {
	body, err := ReadMessage(r)
	if err != nil {
		return nil, err
	}
	return DecodeRequest(body)
}

// ReadMessage returns the decompressed payload of one gzip member.
func ReadMessage(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(bufio.NewReader(r))
	if err != nil {
		if err == io.EOF {
			return nil, Protocol(MsgEmptyInput)
		}
		return nil, &Error{Kind: ErrProtocol, Msg: "invalid_input", Err: err}
	}
	defer zr.Close()
	zr.Multistream(false)

	body, err := io.ReadAll(io.LimitReader(zr, MaxRequestSize+1))
	if err != nil {
		return nil, &Error{Kind: ErrProtocol, Msg: "invalid_input", Err: err}
	}
	if len(body) > MaxRequestSize {
		return nil, Protocol("request too large")
	}
	return body, nil
}

// WriteResponse writes v as gzip-compressed JSON followed by a newline.
// A nil v writes nothing.
func WriteResponse(w io.Writer, v any) error {
	if v == nil {
		return nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return WriteMessage(w, append(body, '\n'))
}

// WriteMessage writes one gzip member holding payload.
func WriteMessage(w io.Writer, payload []byte) error {
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(payload); err != nil {
		return fmt.Errorf("failed to compress response: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush response: %w", err)
	}
	return nil
}

// ReadResponse decodes a reply written by WriteResponse into v.
func ReadResponse(r io.Reader, v any) error {
	body, err := ReadMessage(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// WriteRequest encodes and compresses an envelope, as a device does.
func WriteRequest(w io.Writer, t RequestType, token string, data any) error {
	typ := int(t)
	meta := Meta{Type: &typ}
	if token != "" {
		meta.ID = &token
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	body, err := json.Marshal(envelope{Meta: &meta, Data: raw})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return WriteMessage(w, body)
}
