package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finledger/internal/core"
	"finledger/internal/identity"
	"finledger/internal/query"
)

// errBadRequest marks request-shape failures (malformed JSON, unparsable
// query values) as distinct from domain validation.
var errBadRequest = errors.New("bad request")

// parseQueryParams maps list-view query parameters onto query.Params.
func parseQueryParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	p := query.Params{
		Search:   strings.TrimSpace(q.Get("search")),
		Type:     strings.TrimSpace(q.Get("type")),
		Category: strings.TrimSpace(q.Get("category")),
		Sort:     strings.TrimSpace(q.Get("sort")),
	}

	switch p.Type {
	case "", query.All, string(core.Income), string(core.Expense):
	default:
		return query.Params{}, fmt.Errorf("%w: unknown type %q", errBadRequest, p.Type)
	}

	switch p.Sort {
	case "", query.SortByDate, query.SortByAmount:
	default:
		return query.Params{}, fmt.Errorf("%w: unknown sort %q", errBadRequest, p.Sort)
	}

	if v := strings.TrimSpace(q.Get("date")); v != "" {
		date, err := core.ParseDate(v)
		if err != nil {
			return query.Params{}, fmt.Errorf("%w: invalid date %q", errBadRequest, v)
		}
		p.Date = date
	}

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return query.Params{}, fmt.Errorf("%w: invalid limit %q", errBadRequest, v)
		}
		p.Limit = limit
	}

	return p, nil
}

// parseYearMonth extracts year and month query parameters, defaulting to the
// current month when absent.
func parseYearMonth(r *http.Request) (int, time.Month, error) {
	now := time.Now()
	year := now.Year()
	month := now.Month()

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return 0, 0, fmt.Errorf("%w: invalid year %q", errBadRequest, v)
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("%w: invalid month %q", errBadRequest, v)
		}
		month = time.Month(m)
	}

	return year, month, nil
}

// parseMonths extracts the trailing-window length for the monthly trend,
// defaulting to six months.
func parseMonths(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("months"))
	if v == "" {
		return 6, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: invalid months %q", errBadRequest, v)
	}
	return n, nil
}

func viewCacheKey(owner identity.ID, revision uint64, rawQuery string) string {
	return fmt.Sprintf("%s|%d|%s", owner, revision, rawQuery)
}

// generateRequestID creates a unique request id for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
