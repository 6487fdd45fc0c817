package control

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/firefly-engineering/rtctl/internal/errors"
)

// Proxy forwards req to service serviceID inside the runtime and returns the
// response untouched. The caller must close the response body.
func (c *Client) Proxy(ctx context.Context, pid int, serviceID string, req ProxyRequest) (*http.Response, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid proxy url %q: %v", req.URL, err))
	}

	query := target.RawQuery
	if len(req.Query) > 0 {
		if query != "" {
			query += "&"
		}
		query += req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	subpath := target.EscapedPath()
	if subpath == "" {
		subpath = "/"
	}
	path := RouteServices + "/" + url.PathEscape(serviceID) + "/proxy" + subpath
	resp, err := c.request(ctx, pid, errors.OpProxy, method, path, query, req.Header, req.Body)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
