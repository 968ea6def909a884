package middleware

import (
	"net/http"

	"github.com/saadkhi/Side/internal/httputil"
)

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
