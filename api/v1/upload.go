package v1

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

type multipartBody struct {
	field    string
	path     string
	boundary string
}

func newMultipartBody(field string, path string) (*multipartBody, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &multipartBody{
		field:    field,
		path:     path,
		boundary: multipart.NewWriter(io.Discard).Boundary(),
	}, nil
}

func (m *multipartBody) contentType() string {
	return "multipart/form-data; boundary=" + m.boundary
}

// open streams a new copy of the form from a fresh file handle. The boundary
// is fixed so the Content-Type header stays valid across attempts.
func (m *multipartBody) open() (io.ReadCloser, error) {
	f, err := os.Open(m.path)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		defer f.Close()

		w := multipart.NewWriter(pw)
		if err := w.SetBoundary(m.boundary); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		part, err := w.CreateFormFile(m.field, filepath.Base(m.path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(w.Close())
	}()

	return pr, nil
}
