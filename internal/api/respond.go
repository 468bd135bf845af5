package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/MikeSquared-Agency/Ranking/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status. Unclassified errors are logged
// and reported as a generic internal error.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, apperr.HTTPStatus(kind), errorBody{Error: apperr.Message(err), Kind: string(kind)})
}

// decode reads a JSON body into v and validates its struct tags.
func decode(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return apperr.BadRequest("invalid request body: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		return apperr.BadRequest("%s", validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func idParam(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.BadRequest("invalid %s", name)
	}
	return v, nil
}

func yearParam(r *http.Request) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || v < 1900 || v > 2200 {
		return 0, apperr.BadRequest("invalid year %q", chi.URLParam(r, "year"))
	}
	return v, nil
}

// force reports whether the request asks to bypass the ranking guard.
func force(r *http.Request) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	return b
}

func queryInt(r *http.Request, key string) (*int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, apperr.BadRequest("invalid %s %q", key, s)
	}
	return &v, nil
}

func queryInt64(r *http.Request, key string) (*int64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, apperr.BadRequest("invalid %s %q", key, s)
	}
	return &v, nil
}
