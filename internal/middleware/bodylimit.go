package middleware

import (
	"net/http"

	apperrors "github.com/saadkhi/Side/internal/errors"
)

const DefaultMaxBodySize = 1 << 20 // 1MB

// BodyLimitMiddleware rejects declared oversize bodies up front and caps the
// rest with http.MaxBytesReader, so a chunked upload fails on decode.
type BodyLimitMiddleware struct {
	limit int64
}

func NewBodyLimitMiddleware(limit int64) *BodyLimitMiddleware {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{limit: limit}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > m.limit {
			writeError(w, errBodyTooLarge())
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, m.limit)
		next.ServeHTTP(w, r)
	})
}

func errBodyTooLarge() *apperrors.AppError {
	return apperrors.ValidationError("Request body too large").WithStatus(http.StatusRequestEntityTooLarge)
}
