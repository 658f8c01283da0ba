package agmarknet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivas758/agriguru-sub003/internal/config"
)

var testDate = time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)

func testClient(serverURL string, override func(*config.AgmarknetConfig)) *Client {
	cfg := config.AgmarknetConfig{
		APIKey:         "test-key",
		BaseURL:        serverURL,
		ResourceID:     "test-resource",
		PageSize:       1000,
		RequestDelayMS: 1,
		MaxRetries:     3,
		TimeoutSecs:    5,
		MaxRecords:     100000,
	}
	if override != nil {
		override(&cfg)
	}
	c := NewClient(cfg)
	c.backoffUnit = time.Millisecond
	return c
}

func makeRecords(n int, date string) []map[string]any {
	records := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		records[i] = map[string]any{
			"state":        "Telangana",
			"district":     "Warangal",
			"market":       fmt.Sprintf("Market %d", i),
			"commodity":    "Tomato",
			"variety":      "Local",
			"arrival_date": date,
			"modal_price":  "1200",
		}
	}
	return records
}

func pagedHandler(t *testing.T, totalRecords int, requests *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		remaining := max(totalRecords-offset, 0)
		n := min(limit, remaining)

		resp := apiResponse{
			Records: makeRecords(n, "03-11-2025"),
			Total:   totalRecords,
			Count:   n,
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestFetchAllForDate_PaginationTermination(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(pagedHandler(t, 3400, &requests))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	res := c.FetchAllForDate(context.Background(), testDate, Filters{})

	require.True(t, res.Success)
	assert.Len(t, res.Records, 3400)
	// Three full pages then a 400-record page; no further request is issued.
	assert.Equal(t, int64(4), requests.Load())
}

func TestFetchAllForDate_SinglePage(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(pagedHandler(t, 42, &requests))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	res := c.FetchAllForDate(context.Background(), testDate, Filters{})

	require.True(t, res.Success)
	assert.Len(t, res.Records, 42)
	assert.Equal(t, int64(1), requests.Load())
}

func TestFetchAllForDate_RecordCeiling(t *testing.T) {
	var requests atomic.Int64
	// Server always returns full pages; only the ceiling stops the cursor.
	srv := httptest.NewServer(pagedHandler(t, 1<<30, &requests))
	defer srv.Close()

	c := testClient(srv.URL, func(cfg *config.AgmarknetConfig) {
		cfg.PageSize = 100
		cfg.MaxRecords = 300
	})
	res := c.FetchAllForDate(context.Background(), testDate, Filters{})

	// Ceiling is end-of-data, not an error.
	require.True(t, res.Success)
	assert.Len(t, res.Records, 300)
	assert.Equal(t, int64(3), requests.Load())
}

func TestFetchAllForDate_RetryExhaustion(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	res := c.FetchAllForDate(context.Background(), testDate, Filters{})

	assert.False(t, res.Success)
	assert.Empty(t, res.Records)
	assert.NotEmpty(t, res.Err)
	// maxRetries=3 means 4 total attempts.
	assert.Equal(t, int64(4), requests.Load())
}

func TestFetchAllForDate_RetryThenSuccess(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(apiResponse{Records: makeRecords(5, "03-11-2025"), Total: 5})
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	res := c.FetchAllForDate(context.Background(), testDate, Filters{})

	require.True(t, res.Success)
	assert.Len(t, res.Records, 5)
	assert.Equal(t, int64(3), requests.Load())
}

func TestFetchAllForDate_QueryContract(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			gotQuery[k] = v[0]
		}
		_ = json.NewEncoder(w).Encode(apiResponse{})
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	res := c.FetchAllForDate(context.Background(), testDate, Filters{
		Commodity: "tomato",
		State:     "uttar pradesh",
	})
	require.True(t, res.Success)

	assert.Equal(t, "test-key", gotQuery["api-key"])
	assert.Equal(t, "json", gotQuery["format"])
	assert.Equal(t, "1000", gotQuery["limit"])
	assert.Equal(t, "0", gotQuery["offset"])
	assert.Equal(t, "desc", gotQuery["sort[Arrival_Date]"])
	assert.Equal(t, "03-11-2025", gotQuery["filters[Arrival_Date]"])
	// Filter values are normalized to title case.
	assert.Equal(t, "Tomato", gotQuery["filters[Commodity]"])
	assert.Equal(t, "Uttar Pradesh", gotQuery["filters[State]"])
}

func TestFetchAllForDate_DropsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records := makeRecords(2, "03-11-2025")
		delete(records[1], "market") // required field missing
		_ = json.NewEncoder(w).Encode(apiResponse{Records: records, Total: 2})
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	res := c.FetchAllForDate(context.Background(), testDate, Filters{})

	require.True(t, res.Success)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 2, res.Total)
}

func TestFetchPage_TransportError(t *testing.T) {
	c := testClient("http://127.0.0.1:1", nil) // nothing listening
	res := c.FetchPage(context.Background(), testDate, Filters{}, 10, 0)
	assert.False(t, res.Success)
	assert.Empty(t, res.Records)
	assert.NotEmpty(t, res.Err)
}

func TestThrottle_SerializesRequests(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(pagedHandler(t, 1, &requests))
	defer srv.Close()

	c := testClient(srv.URL, func(cfg *config.AgmarknetConfig) {
		cfg.RequestDelayMS = 30
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		res := c.FetchAllForDate(context.Background(), testDate, Filters{})
		require.True(t, res.Success)
	}
	elapsed := time.Since(start)

	// Three requests through a 30ms serialized limiter: at least two waits.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestFetchByCommodities_Concatenates(t *testing.T) {
	var commodities []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commodities = append(commodities, r.URL.Query().Get("filters[Commodity]"))
		_ = json.NewEncoder(w).Encode(apiResponse{Records: makeRecords(3, "03-11-2025"), Total: 3})
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	res := c.FetchByCommodities(context.Background(), testDate, []string{"tomato", "onion"})

	require.True(t, res.Success)
	assert.Len(t, res.Records, 6)
	assert.Equal(t, []string{"Tomato", "Onion"}, commodities)
}

func TestFetchByStates_SkipsFailedValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filters[State]") == "Broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(apiResponse{Records: makeRecords(2, "03-11-2025"), Total: 2})
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(cfg *config.AgmarknetConfig) {
		cfg.MaxRetries = 1
	})
	res := c.FetchByStates(context.Background(), testDate, []string{"broken", "telangana"})

	require.True(t, res.Success)
	assert.Len(t, res.Records, 2)
}

func TestFetchByStates_AllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(cfg *config.AgmarknetConfig) {
		cfg.MaxRetries = 1
	})
	res := c.FetchByStates(context.Background(), testDate, []string{"a", "b"})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
}

func TestFetchDates_BatchedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("filters[Arrival_Date]")
		n := 1
		if date == "02-11-2025" {
			n = 3
		}
		_ = json.NewEncoder(w).Encode(apiResponse{Records: makeRecords(n, date), Total: n})
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	dates := []time.Time{
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
	}
	results := c.FetchDates(context.Background(), dates, Filters{}, 2)

	require.Len(t, results, 3)
	assert.Len(t, results["2025-11-01"].Records, 1)
	assert.Len(t, results["2025-11-02"].Records, 3)
	assert.Len(t, results["2025-11-03"].Records, 1)
	for _, res := range results {
		assert.True(t, res.Success)
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"tomato", "Tomato"},
		{"TOMATO", "Tomato"},
		{"uttar pradesh", "Uttar Pradesh"},
		{"  green chilli ", "Green Chilli"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, TitleCase(tt.in), "input %q", tt.in)
	}
}
