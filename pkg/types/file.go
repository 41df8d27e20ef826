package types

import "io"

// File is one part of a multipart upload.
type File struct {
	// Field is the form field name. Empty means "files[]".
	Field string
	// Name is the file name sent to the server.
	Name string
	// ContentType defaults to application/octet-stream.
	ContentType string
	Content     io.Reader
}
