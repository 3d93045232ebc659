package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, []byte(s)))
	return &buf
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantType  RequestType
		wantToken string
		wantData  string
		wantErr   bool
	}{
		{"identify without id", `{"meta":{"type":4,"id":null},"data":{"device":"abc"}}`, TypeIdentify, "", `{"device":"abc"}`, false},
		{"update with id", `{"meta":{"type":2,"id":"tok"},"data":{}}`, TypeUpdate, "tok", `{}`, false},
		{"missing data", `{"meta":{"type":11,"id":"tok"}}`, TypeProblems, "tok", `{}`, false},
		{"null data", `{"meta":{"type":11,"id":"tok"},"data":null}`, TypeProblems, "tok", `{}`, false},
		{"retired type is in range", `{"meta":{"type":1}}`, TypeMapDownload, "", `{}`, false},
		{"empty", "  \n", 0, "", "", true},
		{"missing meta", `{"data":{}}`, 0, "", "", true},
		{"missing type", `{"meta":{"id":"tok"}}`, 0, "", "", true},
		{"type too low", `{"meta":{"type":0}}`, 0, "", "", true},
		{"type too high", `{"meta":{"type":12}}`, 0, "", "", true},
		{"not json", `meta=1`, 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrProtocol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, req.Type)
			assert.Equal(t, tt.wantToken, req.Token)
			assert.JSONEq(t, tt.wantData, string(req.Data))
		})
	}
}

func TestReadRequest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, TypeUpdate, "tok", map[string]any{"lat": 48.1}))
	// trailing bytes after the member must not be consumed as a second request
	buf.WriteString("garbage")

	req, err := ReadRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeUpdate, req.Type)
	assert.Equal(t, "tok", req.Token)

	var data struct {
		Lat float64 `json:"lat"`
	}
	require.NoError(t, req.Bind(&data))
	assert.Equal(t, 48.1, data.Lat)
}

func TestReadRequestErrors(t *testing.T) {
	_, err := ReadRequest(&bytes.Buffer{})
	assert.ErrorIs(t, err, ErrProtocol)

	_, err = ReadRequest(bytes.NewBufferString("plain text"))
	assert.ErrorIs(t, err, ErrProtocol)

	_, err = ReadRequest(gzipped(t, ""))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, map[string]string{"status": "done"}))

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = out.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, "{\"status\":\"done\"}\n", out.String())

	buf.Reset()
	require.NoError(t, WriteResponse(&buf, nil))
	assert.Zero(t, buf.Len())
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
		kind error
	}{
		{Validation(MsgMissingArgs), MsgMissingArgs, ErrValidation},
		{Session(MsgNoSession), MsgNoSession, ErrSession},
		{Upstream(MsgNothingToRoute, errors.New("503")), MsgNothingToRoute, ErrUpstream},
		{Store(errors.New("disk I/O error")), MsgInternal, ErrStore},
		{fmt.Errorf("wrapped: %w", Validation("device id not found")), "device id not found", ErrValidation},
		{errors.New("anything else"), MsgInternal, nil},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
			if tt.kind != nil {
				assert.ErrorIs(t, tt.err, tt.kind)
			}
		})
	}
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream(MsgNothingToRoute, cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorReply{Error: MsgNothingToRoute}, Reply(err))
}

func TestRequestTypes(t *testing.T) {
	types := Types()
	require.Len(t, types, 11)
	assert.Equal(t, TypeMapDownload, types[0])
	assert.Equal(t, TypeProblems, types[10])
	assert.False(t, RequestType(0).Valid())
	assert.Equal(t, "update", TypeUpdate.String())
}
