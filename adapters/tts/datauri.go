package tts

import (
	"encoding/base64"
	"errors"
	"strings"
)

// MIMETypeWAV is the type of every clip this package produces
const MIMETypeWAV = "audio/wav"

var errNotDataURI = errors.New("not a base64 data URI")

// DataURI encodes audio as data:<mime>;base64,<payload>
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its MIME type and payload
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errNotDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotDataURI
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, errNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}
