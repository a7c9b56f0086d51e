package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Compress gzips responses for clients that accept it. Small bodies are
// sent as-is.
func Compress(next http.Handler) (http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(1024))
	if err != nil {
		return nil, err
	}
	return wrap(next), nil
}
