package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

const defaultFileField = "files[]"

// SendFiles uploads files for e as multipart/form-data and returns the
// decoded response object.
func (s *Store[T, P]) SendFiles(ctx context.Context, e P, files []types.File) (types.Record, error) {
	if e == nil {
		return nil, types.ErrNilEntity
	}
	if e.GetID() == 0 {
		return nil, types.ErrNotPersisted
	}

	body, contentType, err := encodeMultipart(files)
	if err != nil {
		return nil, err
	}
	v, err := s.do(ctx, request{
		method:      http.MethodPost,
		url:         s.url(nil, strconv.FormatInt(e.GetID(), 10), "files"),
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	rec, ok := unwrapObject(v)
	if !ok {
		return types.Record{}, nil
	}
	return rec, nil
}

func encodeMultipart(files []types.File) (*bytes.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for i, f := range files {
		field := f.Field
		if field == "" {
			field = defaultFileField
		}
		name := f.Name
		if name == "" {
			name = "file" + strconv.Itoa(i)
		}
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", name, err)
		}
		if f.Content != nil {
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, "", fmt.Errorf("copy %s: %w", name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return bytes.NewReader(buf.Bytes()), w.FormDataContentType(), nil
}
