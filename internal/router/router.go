// Package router maps request paths onto the file table.
//
// Route is a pure function: the same path and table always produce the same
// Response. Handler adapts it to net/http.
package router

import (
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wolfeidau/filedrop/internal/filetable"
	"golang.org/x/net/http/httpguts"
)

const (
	contentTypeBinary = "application/octet-stream"
	contentTypeHTML   = "text/html"

	// FallbackFilename is used in Content-Disposition when the real name
	// cannot be carried in a header value.
	FallbackFilename = "Download"

	notFoundBody = "Not Found!"
)

// Kind identifies which branch of the router produced a response.
type Kind string

const (
	KindFile     Kind = "file"
	KindIndex    Kind = "index"
	KindNotFound Kind = "not_found"
)

// Response describes what should be written back for a request.
type Response struct {
	Kind   Kind
	Status int
	Header http.Header
	Body   []byte
}

// Route resolves a request path against the table.
func Route(path string, table *filetable.Table) Response {
	if key := strings.TrimPrefix(path, "/"); key != "" {
		if data, ok := table.Get(key); ok {
			return Response{
				Kind:   KindFile,
				Status: http.StatusOK,
				Header: http.Header{
					"Content-Type":        {contentTypeBinary},
					"Content-Disposition": {contentDisposition(key)},
				},
				Body: data,
			}
		}
	}

	if path == "/" {
		return Response{
			Kind:   KindIndex,
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": {contentTypeHTML}},
			Body:   indexPage(table),
		}
	}

	return Response{
		Kind:   KindNotFound,
		Status: http.StatusNotFound,
		Header: http.Header{"Content-Type": {contentTypeHTML}},
		Body:   []byte(notFoundBody),
	}
}

func contentDisposition(name string) string {
	value := `attachment; filename="` + name + `"`
	if strings.ContainsAny(name, `"\`) || !httpguts.ValidHeaderFieldValue(value) {
		return `attachment; filename="` + FallbackFilename + `"`
	}
	return value
}

// indexPage renders one download link per file, in table order.
func indexPage(table *filetable.Table) []byte {
	var b strings.Builder
	for _, name := range table.Names() {
		b.WriteString(`<a href="/`)
		b.WriteString(html.EscapeString(url.PathEscape(name)))
		b.WriteString(`">Download `)
		b.WriteString(html.EscapeString(name))
		b.WriteString(`</a><br>`)
	}
	return []byte(b.String())
}

// Handler serves the router over HTTP. Every method is treated the same.
type Handler struct {
	table *filetable.Table
}

func NewHandler(table *filetable.Table) *Handler {
	return &Handler{table: table}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := Route(r.URL.Path, h.table)

	header := w.Header()
	for k, v := range resp.Header {
		header[k] = v
	}
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))

	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
