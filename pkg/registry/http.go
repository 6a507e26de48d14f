package registry

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/the-maldridge/arepo/pkg/types"
)

// statusUpdate is the body accepted by the POST handlers.
type statusUpdate struct {
	Status  types.StatusEnum `json:"status"`
	Package *types.Package   `json:"package,omitempty"`
}

// HTTPEntry provides the mountpoint for this service into the shared
// webserver routing tree.
func (r *Registry) HTTPEntry() chi.Router {
	rt := chi.NewRouter()

	rt.Get("/packages", r.httpList)
	rt.Get("/packages/{base}", r.httpGet)
	rt.Post("/packages/{base}", r.httpUpdate)
	rt.Delete("/packages/{base}", r.httpRemove)

	rt.Get("/self", r.httpSelf)
	rt.Post("/self", r.httpSetSelf)

	return rt
}

func (r *Registry) httpList(w http.ResponseWriter, req *http.Request) {
	jsonOK(w, r.List())
}

func (r *Registry) httpGet(w http.ResponseWriter, req *http.Request) {
	e, err := r.Get(chi.URLParam(req, "base"))
	if err != nil {
		jsonError(w, err, http.StatusNotFound)
		return
	}
	jsonOK(w, e)
}

func (r *Registry) httpUpdate(w http.ResponseWriter, req *http.Request) {
	base := chi.URLParam(req, "base")

	var body statusUpdate
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		jsonError(w, err, http.StatusBadRequest)
		return
	}
	status, err := types.ParseStatus(string(body.Status))
	if err != nil {
		jsonError(w, err, http.StatusBadRequest)
		return
	}

	if body.Package != nil {
		if body.Package.Base != base {
			jsonError(w, errors.Errorf("package base %q does not match %q", body.Package.Base, base), http.StatusBadRequest)
			return
		}
		err = r.Add(*body.Package, status)
	} else {
		err = r.Update(base, status)
	}

	switch {
	case errors.Is(err, ErrUnknownPackage):
		jsonError(w, err, http.StatusNotFound)
	case err != nil:
		r.l.Warn("Status update failed", "base", base, "error", err)
		jsonError(w, err, http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (r *Registry) httpRemove(w http.ResponseWriter, req *http.Request) {
	if err := r.Remove(chi.URLParam(req, "base")); err != nil {
		jsonError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Registry) httpSelf(w http.ResponseWriter, req *http.Request) {
	jsonOK(w, r.Self())
}

func (r *Registry) httpSetSelf(w http.ResponseWriter, req *http.Request) {
	var body statusUpdate
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		jsonError(w, err, http.StatusBadRequest)
		return
	}
	status, err := types.ParseStatus(string(body.Status))
	if err != nil {
		jsonError(w, err, http.StatusBadRequest)
		return
	}
	if err := r.SetSelf(status); err != nil {
		r.l.Warn("Self status update failed", "error", err)
		jsonError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func jsonOK(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, err error, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	out := struct {
		Error string
	}{
		Error: err.Error(),
	}
	json.NewEncoder(w).Encode(out)
}
