package ingest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/insighthink/internal/apperr"
)

const (
	// MaxBodyBytes caps a whole create or update request.
	MaxBodyBytes = 32 << 20
	// multipartMemory is how much of a multipart body is buffered in memory
	// before file parts spill to temporary files.
	multipartMemory = 8 << 20
)

// File is one uploaded asset.
type File struct {
	Field        string
	OriginalName string
	ContentType  string
	Size         int64

	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the file content.
func (f *File) Open() (io.ReadCloser, error) { return f.open() }

// NewFile wraps in-memory content as a File.
func NewFile(field, name, contentType string, data []byte) *File {
	return &File{
		Field:        field,
		OriginalName: name,
		ContentType:  contentType,
		Size:         int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Request is a decoded create or update body.
type Request struct {
	Fields Fields
	Files  map[string]*File

	form *multipart.Form
}

// Close releases temporary files held by a multipart form.
func (r *Request) Close() error {
	if r.form == nil {
		return nil
	}
	return r.form.RemoveAll()
}

// Decode reads a multipart/form-data or application/json body. fileFields
// names the fields that carry assets; in JSON bodies a data URI under one of
// those names is decoded into a File.
func Decode(w http.ResponseWriter, r *http.Request, fileFields ...string) (*Request, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, apperr.Decode("missing or invalid Content-Type", err)
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	switch mediaType {
	case "multipart/form-data":
		return decodeMultipart(r)
	case "application/json":
		return decodeJSON(r.Body, fileFields)
	}
	return nil, apperr.Decode(fmt.Sprintf("unsupported Content-Type %q", mediaType), nil)
}

func decodeMultipart(r *http.Request) (*Request, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, apperr.Decode("invalid multipart body", err)
	}
	form := r.MultipartForm
	req := &Request{Fields: Fields{}, Files: map[string]*File{}, form: form}
	for name, values := range form.Value {
		switch len(values) {
		case 0:
		case 1:
			req.Fields[name] = ScalarValue(values[0])
		default:
			req.Fields[name] = ListValue(values...)
		}
	}
	for name, headers := range form.File {
		if len(headers) == 0 || (headers[0].Size == 0 && headers[0].Filename == "") {
			continue
		}
		// Same rule as repeated text fields: the first part wins.
		fh := headers[0]
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		req.Files[name] = &File{
			Field:        name,
			OriginalName: fh.Filename,
			ContentType:  ct,
			Size:         fh.Size,
			open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}
	return req, nil
}

// DecodeJSON reads a JSON object body the same way Decode does for
// application/json requests.
func DecodeJSON(body io.Reader, fileFields ...string) (*Request, error) {
	return decodeJSON(body, fileFields)
}

func decodeJSON(body io.Reader, fileFields []string) (*Request, error) {
	var doc map[string]json.RawMessage
	dec := json.NewDecoder(body)
	if err := dec.Decode(&doc); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Decode("request body too large", err)
		}
		return nil, apperr.Decode("invalid JSON body", err)
	}
	if doc == nil {
		return nil, apperr.Decode("JSON body must be an object", nil)
	}

	isFile := make(map[string]bool, len(fileFields))
	for _, f := range fileFields {
		isFile[f] = true
	}

	req := &Request{Fields: Fields{}, Files: map[string]*File{}}
	for name, raw := range doc {
		if isFile[name] {
			var s string
			if json.Unmarshal(raw, &s) == nil && strings.HasPrefix(s, "data:") {
				f, err := FileFromDataURI(name, s)
				if err != nil {
					return nil, err
				}
				req.Files[name] = f
				continue
			}
		}
		if v := jsonValue(raw); v.Present() {
			req.Fields[name] = v
		}
	}
	return req, nil
}

// jsonValue maps one JSON member onto the field union: strings, numbers and
// booleans become scalars, arrays of those become lists, anything nested is
// kept raw.
func jsonValue(raw json.RawMessage) Value {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}
	}
	switch raw[0] {
	case 'n':
		return Value{}
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return Value{}
		}
		return ScalarValue(s)
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return RawValue(raw)
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			v := jsonValue(item)
			if v.Kind() != Scalar {
				return RawValue(raw)
			}
			list = append(list, v.scalar)
		}
		return ListValue(list...)
	case '{':
		return RawValue(raw)
	}
	// Number or boolean literal.
	return ScalarValue(string(raw))
}

// FileFromDataURI decodes a base64 data URI into a File with a generated name.
func FileFromDataURI(field, uri string) (*File, error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil, apperr.Decode("invalid data URI: missing comma separator", nil)
	}
	meta, encoded := rest[:comma], rest[comma+1:]
	if !strings.Contains(meta, ";base64") {
		return nil, apperr.Decode("only base64 data URIs are supported", nil)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, apperr.Decode("invalid base64 data", err)
		}
	}
	contentType := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return NewFile(field, uuid.New().String()+extensionFor(contentType), contentType, data), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}
