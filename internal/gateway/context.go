package gateway

import (
	"context"
	"net/http"
)

type paramsKey struct{}

func withParams(ctx context.Context, params Params) context.Context {
	return context.WithValue(ctx, paramsKey{}, params)
}

// Param returns a named path parameter extracted by PathRouter, or "" if
// absent.
func Param(r *http.Request, name string) string {
	params, _ := r.Context().Value(paramsKey{}).(Params)
	return params[name]
}
