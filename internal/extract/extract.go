// Package extract turns uploaded files into plain text for indexing.
// Supported formats: .txt (taken as UTF-8) and .pdf.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
)

// Text extracts plain text from an uploaded file, dispatching on the
// filename extension. Unsupported extensions and files without extractable
// text yield ErrInvalid.
func Text(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", fmt.Errorf("empty text file: %w", appErr.ErrInvalid)
		}
		return text, nil
	case ".pdf":
		return pdfText(data)
	default:
		return "", fmt.Errorf("unsupported file type %q: %w", filepath.Ext(filename), appErr.ErrInvalid)
	}
}

// pdfText writes the upload to a temp file because the pdf reader needs
// random access, then pulls the plain text stream.
func pdfText(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	f, reader, err := pdf.Open(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", appErr.ErrInvalid)
	}
	defer f.Close()

	stream, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", appErr.ErrInvalid)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stream); err != nil {
		return "", err
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("no text extracted from pdf: %w", appErr.ErrInvalid)
	}
	return text, nil
}
