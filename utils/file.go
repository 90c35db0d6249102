package utils

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// File is an uploaded file read into memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

func (f File) Reader() io.Reader { return bytes.NewReader(f.Data) }

// Ext returns the lower-cased file extension including the dot.
func (f File) Ext() string { return strings.ToLower(filepath.Ext(f.Name)) }

// ReadFormFile reads a multipart file, at most maxBytes long. The content type
// falls back to sniffing when the client did not send one.
func ReadFormFile(fh *multipart.FileHeader, maxBytes int64) (File, error) {
	if fh.Size > maxBytes {
		return File{}, fmt.Errorf("file %q exceeds %d bytes", fh.Filename, maxBytes)
	}

	src, err := fh.Open()
	if err != nil {
		return File{}, fmt.Errorf("open %q: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return File{}, fmt.Errorf("read %q: %w", fh.Filename, err)
	}
	if int64(len(data)) > maxBytes {
		return File{}, fmt.Errorf("file %q exceeds %d bytes", fh.Filename, maxBytes)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	return File{Name: filepath.Base(fh.Filename), ContentType: contentType, Data: data}, nil
}

// ReadFormFiles reads every file under field.
func ReadFormFiles(form *multipart.Form, field string, maxBytes int64) ([]File, error) {
	if form == nil {
		return nil, nil
	}
	var files []File
	for _, fh := range form.File[field] {
		f, err := ReadFormFile(fh, maxBytes)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
