package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// PageRequest describes the base request repeated for every page. Query is
// copied per page before per_page and page parameters are set.
type PageRequest struct {
	URL    string
	Header http.Header
	Query  url.Values
}

// PageFunc consumes one decoded page body and reports how many items it
// contained. Returning an error stops pagination.
type PageFunc func(body []byte) (int, error)

// Paginate fetches numbered pages starting at 1 until a page yields zero
// items or the response carries a Link header without rel="next". On a
// non-2xx page fetch it stops and returns a *StatusError; pages already
// delivered to each stand, so callers treat the accumulated items as best
// effort rather than discarding them.
func (e *Executor) Paginate(ctx context.Context, req PageRequest, perPage int, each PageFunc) error {
	for page := 1; ; page++ {
		q := url.Values{}
		for k, vs := range req.Query {
			q[k] = vs
		}
		q.Set("per_page", strconv.Itoa(perPage))
		q.Set("page", strconv.Itoa(page))

		pageURL := req.URL + "?" + q.Encode()
		res := e.Do(ctx, http.MethodGet, pageURL, req.Header, nil)
		if !res.OK() {
			return &StatusError{StatusCode: res.StatusCode, URL: pageURL, Detail: res.ErrText}
		}

		n, err := each(res.Body)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if link := res.Header.Get("Link"); link != "" && !hasNextLink(link) {
			return nil
		}
	}
}

// hasNextLink reports whether a Link header advertises a next page.
func hasNextLink(link string) bool {
	return strings.Contains(link, `rel="next"`)
}
