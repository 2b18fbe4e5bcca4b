// Package pagination implements the pageSize, pageToken, and orderBy dialect
// the marketplace collection endpoints speak, including the opaque base64
// cursor carried in next_page_token.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the client omits pageSize.
	DefaultPageSize = 20
	// MaxPageSize caps pageSize so one request cannot drain a collection.
	MaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidOrderBy   = errors.New("pagination: invalid orderBy")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Order is one orderBy clause, e.g. "price_minor desc".
type Order struct {
	Field string
	Desc  bool
}

// Params carries the paging state parsed from one request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
	Orders    []Order
}

// Options tell FromRequest what a given endpoint permits. A nil or empty
// AllowedOrderFields means the endpoint rejects orderBy outright.
type Options struct {
	DefaultPageSize    int
	MaxPageSize        int
	AllowedOrderFields []string
}

// FromRequest parses pageSize, pageToken, and orderBy off the request query.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	query := r.URL.Query()

	pageSize, err := parsePageSize(query.Get("pageSize"), opts)
	if err != nil {
		return Params{}, err
	}
	params := Params{PageSize: pageSize}

	if token := strings.TrimSpace(query.Get("pageToken")); token != "" {
		cursor, err := DecodeToken(token)
		if err != nil {
			return Params{}, err
		}
		params.PageToken = token
		params.Cursor = cursor
	}

	orders, err := parseOrderBy(query["orderBy"], opts.AllowedOrderFields)
	if err != nil {
		return Params{}, err
	}
	params.Orders = orders
	return params, nil
}

func parsePageSize(raw string, opts Options) (int, error) {
	ceiling := opts.MaxPageSize
	if ceiling <= 0 {
		ceiling = MaxPageSize
	}
	fallback := opts.DefaultPageSize
	if fallback <= 0 {
		fallback = DefaultPageSize
	}
	if fallback > ceiling {
		fallback = ceiling
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > ceiling {
		value = ceiling
	}
	return value, nil
}

// parseOrderBy accepts comma-separated "field" or "field asc|desc" clauses.
// The first clause wins when a field repeats.
func parseOrderBy(raw []string, allowed []string) ([]Order, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: this endpoint does not support ordering", ErrInvalidOrderBy)
	}

	permitted := make(map[string]bool, len(allowed))
	for _, field := range allowed {
		permitted[field] = true
	}

	var orders []Order
	seen := make(map[string]bool)
	for _, value := range raw {
		for _, clause := range strings.Split(value, ",") {
			fields := strings.Fields(clause)
			if len(fields) == 0 {
				continue
			}
			if len(fields) > 2 {
				return nil, fmt.Errorf("%w: malformed clause %q", ErrInvalidOrderBy, strings.TrimSpace(clause))
			}
			name := fields[0]
			if !permitted[name] {
				return nil, fmt.Errorf("%w: cannot order by %q", ErrInvalidOrderBy, name)
			}
			desc := false
			if len(fields) == 2 {
				switch strings.ToLower(fields[1]) {
				case "asc":
				case "desc":
					desc = true
				default:
					return nil, fmt.Errorf("%w: direction %q", ErrInvalidOrderBy, fields[1])
				}
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			orders = append(orders, Order{Field: name, Desc: desc})
		}
	}
	return orders, nil
}

// Window clamps the requested page against total items, returning the
// half-open [start, end) range plus the token for the page after it. The
// token is empty on the last page.
func Window(params Params, total int) (int, int, string, error) {
	size := params.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	start := params.Cursor.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}

	end := start + size
	if end >= total {
		return start, total, "", nil
	}
	next, err := EncodeToken(Cursor{Offset: end})
	if err != nil {
		return 0, 0, "", err
	}
	return start, end, next, nil
}
