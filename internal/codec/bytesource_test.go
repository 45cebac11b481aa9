package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeShapesAgree(t *testing.T) {
	want := []byte{0, 1, 2, 127, 128, 254, 255}

	shapes := map[SourceKind]string{
		SourceContiguous: `"AAECf4D+/w=="`,
		SourceNumeric:    `[0,1,2,127,128,254,255]`,
		SourceWrapped:    `{"type":"Buffer","data":[0,1,2,127,128,254,255]}`,
	}

	for kind, raw := range shapes {
		t.Run(kind.String(), func(t *testing.T) {
			src, err := ParseByteSource(json.RawMessage(raw))
			require.NoError(t, err)
			assert.Equal(t, kind, src.Kind)

			res, err := Decode(json.RawMessage(raw), "image/png")
			require.NoError(t, err)
			assert.Equal(t, want, res.Data)
			assert.Equal(t, len(want), res.Size)
			assert.Equal(t, "image/png", res.MimeType)
			assert.Equal(t, Fingerprint(want), res.Fingerprint)
		})
	}
}

func TestDecodeUnpaddedBase64(t *testing.T) {
	res, err := Decode(json.RawMessage(`"AQI"`), "")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, res.Data)
	assert.Equal(t, DefaultMimeType, res.MimeType)
}

func TestDecodeEmptyPayloads(t *testing.T) {
	for _, raw := range []string{`""`, `[]`, `{"data":[]}`} {
		res, err := Decode(json.RawMessage(raw), "text/plain")
		require.NoError(t, err, raw)
		assert.Equal(t, 0, res.Size, raw)
	}
}

func TestDecodeRejectsUnknownShapes(t *testing.T) {
	bad := []string{
		``,
		`null`,
		`true`,
		`42`,
		`{"bytes":[1,2]}`,
		`{"data":"AQI="}`,
		`[1,2,256]`,
		`[-1]`,
		`[1.5]`,
		`["a"]`,
		`"not base64!!"`,
	}
	for _, raw := range bad {
		_, err := Decode(json.RawMessage(raw), "image/png")
		var decodeErr *DecodeError
		assert.ErrorAs(t, err, &decodeErr, raw)
	}

	_, err := Decode(json.RawMessage(`{"bytes":[1]}`), "")
	assert.ErrorIs(t, err, ErrUnrecognizedShape)
}
