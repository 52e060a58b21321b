package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// bindUUID binds the path parameter name as a UUID and returns its
// canonical string form. Malformed ids are answered with 400.
func bindUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, gochi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid "+name+": must be a UUID")
		return "", false
	}
	return id.String(), true
}

// bindLimit binds the optional limit query parameter. Absent means 0,
// which the use cases replace with their default page size.
func bindLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid limit: must be an integer")
		return 0, false
	}
	if limit == nil {
		return 0, true
	}
	return *limit, true
}
