//go:build !swagger

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Swagger UI is compiled in only with the "swagger" build tag. The
// stub answers with 404 so the route shape stays stable.
func mountSwagger(r chi.Router) {
	r.Get("/swagger/*", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "swagger UI not built in (rebuild with -tags swagger)")
	})
}
