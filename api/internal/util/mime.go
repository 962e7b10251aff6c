package util

import (
	"encoding/base64"

	"github.com/gabriel-vasile/mimetype"
)

// SniffMIME detects the media type of b from its content, without
// parameters. Unknown content yields application/octet-stream.
func SniffMIME(b []byte) string {
	return mimetype.Detect(b).String()
}

// IsImage reports whether the detected media type of b is an image type.
func IsImage(b []byte) bool {
	for m := mimetype.Detect(b); m != nil; m = m.Parent() {
		if m.Is("image/jpeg") || m.Is("image/png") || m.Is("image/gif") ||
			m.Is("image/bmp") || m.Is("image/tiff") || m.Is("image/webp") {
			return true
		}
	}
	return false
}

// SniffMimeForOCR maps content to the format names of the Yandex OCR API.
func SniffMimeForOCR(b []byte) string {
	switch m := mimetype.Detect(b); {
	case m.Is("image/jpeg"):
		return "JPEG"
	case m.Is("image/png"):
		return "PNG"
	case m.Is("application/pdf"):
		return "PDF"
	}
	return ""
}

func MakeDataURL(mime string, b []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}
