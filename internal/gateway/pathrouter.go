package gateway

import (
	"net/http"
	"sort"
	"strings"
)

// Params carries the named path segments extracted by a route match.
type Params map[string]string

// route is one registered (method, pattern) pair. A pattern segment
// beginning with ":" binds that segment's value into Params; a trailing
// "*" segment matches the remainder of the path (including slashes) as a
// single value keyed "*".
type route struct {
	method   string
	pattern  string
	segments []string
	handler  http.HandlerFunc
	order    int
}

// PathRouter is a minimal HTTP path router implementing :name parameter
// extraction and trailing "*" wildcard matching. Candidate matches are
// ranked by specificity (most literal segments first, counted anywhere in
// the pattern) with registration order as the tiebreak — so
// a more specific route always wins over a looser one regardless of which
// was registered first, and two equally specific routes resolve
// deterministically to whichever was registered first.
type PathRouter struct {
	routes []route
	nextID int
}

// NewPathRouter builds an empty router.
func NewPathRouter() *PathRouter {
	return &PathRouter{}
}

// Handle registers a handler for a method and pattern.
func (p *PathRouter) Handle(method, pattern string, handler http.HandlerFunc) {
	p.routes = append(p.routes, route{
		method:   method,
		pattern:  pattern,
		segments: splitPath(pattern),
		handler:  handler,
		order:    p.nextID,
	})
	p.nextID++
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// specificity counts the literal (non-param, non-wildcard) segments in a
// route's pattern — higher is more specific.
func specificity(segments []string) int {
	n := 0
	for _, s := range segments {
		if s == "*" || strings.HasPrefix(s, ":") {
			continue
		}
		n++
	}
	return n
}

// Match finds the best-matching route for method and path, returning the
// handler, extracted params, and whether a match was found.
func (p *PathRouter) Match(method, path string) (http.HandlerFunc, Params, bool) {
	reqSegs := splitPath(path)

	var candidates []route
	for _, r := range p.routes {
		if r.method != method {
			continue
		}
		if _, ok := matchSegments(r.segments, reqSegs); ok {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, nil, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := specificity(candidates[i].segments), specificity(candidates[j].segments)
		if si != sj {
			return si > sj
		}
		return candidates[i].order < candidates[j].order
	})

	best := candidates[0]
	params, _ := matchSegments(best.segments, reqSegs)
	return best.handler, params, true
}

// ServeHTTP implements http.Handler, dispatching to the matched route and
// injecting Params via request context.
func (p *PathRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, params, ok := p.Match(r.Method, r.URL.Path)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Not found"}`))
		return
	}
	r = r.WithContext(withParams(r.Context(), params))
	handler(w, r)
}

func matchSegments(pattern, actual []string) (Params, bool) {
	params := Params{}
	for i, seg := range pattern {
		if seg == "*" {
			params["*"] = strings.Join(actual[i:], "/")
			return params, true
		}
		if i >= len(actual) {
			return nil, false
		}
		if strings.HasPrefix(seg, ":") {
			params[seg[1:]] = actual[i]
			continue
		}
		if seg != actual[i] {
			return nil, false
		}
	}
	if len(pattern) != len(actual) {
		return nil, false
	}
	return params, true
}
