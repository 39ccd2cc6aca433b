// Package pagination reads limit/offset query parameters and wraps list
// results in the envelope every list endpoint returns.
package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit=&offset=. A missing, malformed or non-positive
// limit becomes DefaultLimit and is capped at MaxLimit; a negative offset
// becomes 0.
func FromContext(c echo.Context) Params {
	p := Params{Limit: DefaultLimit}
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxLimit)
	}
	if n, err := strconv.Atoi(c.QueryParam("offset")); err == nil && n > 0 {
		p.Offset = n
	}
	return p
}

type Response struct {
	Data     interface{} `json:"data"`
	Total    int         `json:"total"`
	Limit    int         `json:"limit"`
	Offset   int         `json:"offset"`
	HasMore  bool        `json:"has_more"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
}

// Page builds the envelope for one page of data out of total rows. The
// next/previous links reuse the request URL so filters carry over.
func Page(c echo.Context, p Params, data interface{}, total int) *Response {
	r := &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+p.Limit < total,
	}
	if r.HasMore {
		r.Next = p.link(c.Request().URL, p.Offset+p.Limit)
	}
	if p.Offset > 0 {
		r.Previous = p.link(c.Request().URL, max(p.Offset-p.Limit, 0))
	}
	return r
}

func (p Params) link(base *url.URL, offset int) *string {
	u := *base
	q := u.Query()
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	s := u.RequestURI()
	return &s
}
