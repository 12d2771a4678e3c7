package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"launchpad-index/internal/domain"
)

func testConfig(baseURL string) Config {
	return Config{BaseURL: baseURL, PageSize: 2, MaxPages: 10}
}

func addrN(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func fieldStrings(res *FetchResult, key string) []string {
	var out []string
	for _, l := range res.Listings {
		if v, ok := l.Fields[key].(string); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestClankerAdapter_Pages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tokens" || r.URL.Query().Get("sort") != "desc" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{"data":[{"contract_address":"%s"},{"contract_address":"%s"}],"hasMore":true}`, addrN(1), addrN(2))
		case "2":
			fmt.Fprintf(w, `{"data":[{"contract_address":"%s"}],"hasMore":false}`, addrN(3))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	a := NewClankerAdapter(testConfig(server.URL), zerolog.Nop())
	if a.Source() != domain.SourceClanker {
		t.Errorf("unexpected source %s", a.Source())
	}
	res := a.FetchListings(context.Background())
	if got := fieldStrings(res, "contract_address"); len(got) != 3 || got[2] != addrN(3) {
		t.Errorf("unexpected listings: %v", got)
	}
	if res.Pages != 2 || res.PageErrors != 0 {
		t.Errorf("unexpected pages=%d errors=%d", res.Pages, res.PageErrors)
	}
}

func TestClankerAdapter_PageFailureKeepsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprintf(w, `{"data":[{"contract_address":"%s"},{"contract_address":"%s"}],"hasMore":true}`, addrN(1), addrN(2))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	res := NewClankerAdapter(testConfig(server.URL), zerolog.Nop()).FetchListings(context.Background())
	if len(res.Listings) != 2 || res.PageErrors != 1 || res.LastError == nil {
		t.Errorf("expected partial result, got listings=%d errors=%d err=%v", len(res.Listings), res.PageErrors, res.LastError)
	}
}

func TestClawnchAdapter_OffsetPaging(t *testing.T) {
	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("unexpected limit %s", r.URL.Query().Get("limit"))
		}
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprintf(w, `{"tokens":[{"address":"%s"},{"address":"%s"}],"total":3}`, addrN(1), addrN(2))
		case "2":
			fmt.Fprintf(w, `{"tokens":[{"address":"%s"}],"total":3}`, addrN(3))
		}
	}))
	defer server.Close()

	res := NewClawnchAdapter(testConfig(server.URL), zerolog.Nop()).FetchListings(context.Background())
	if len(res.Listings) != 3 {
		t.Errorf("expected 3 listings, got %d", len(res.Listings))
	}
	if strings.Join(offsets, ",") != "0,2" {
		t.Errorf("unexpected offsets %v", offsets)
	}
}

func TestCreatorBidAdapter_ShortPageEnds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `[{"agentKeyAddress":"%s"},{"agentKeyAddress":"%s"}]`, addrN(1), addrN(2))
		case "2":
			fmt.Fprintf(w, `[{"agentKeyAddress":"%s"}]`, addrN(3))
		}
	}))
	defer server.Close()

	res := NewCreatorBidAdapter(testConfig(server.URL), zerolog.Nop()).FetchListings(context.Background())
	if calls != 2 || len(res.Listings) != 3 {
		t.Errorf("expected 2 calls and 3 listings, got %d and %d", calls, len(res.Listings))
	}
}

func TestDopplerAdapter_CursorPaging(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/graphql" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if !strings.Contains(string(body), `"after":"c1"`) {
			fmt.Fprintf(w, `{"data":{"tokens":{"items":[{"address":"%s"},{"address":"%s"}],"pageInfo":{"hasNextPage":true,"endCursor":"c1"}}}}`, addrN(1), addrN(2))
			return
		}
		fmt.Fprintf(w, `{"data":{"tokens":{"items":[{"address":"%s"}],"pageInfo":{"hasNextPage":false,"endCursor":"c2"}}}}`, addrN(3))
	}))
	defer server.Close()

	res := NewDopplerAdapter(testConfig(server.URL), zerolog.Nop()).FetchListings(context.Background())
	if len(res.Listings) != 3 || res.Pages != 2 {
		t.Errorf("expected 3 listings over 2 pages, got %d over %d", len(res.Listings), res.Pages)
	}
	if len(bodies) != 2 || strings.Contains(bodies[0], `"after"`) {
		t.Errorf("first request should not carry a cursor: %v", bodies)
	}
}

func TestDopplerAdapter_RepeatedCursorStops(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"data":{"tokens":{"items":[{"address":"%s"}],"pageInfo":{"hasNextPage":true,"endCursor":"same"}}}}`, addrN(calls))
	}))
	defer server.Close()

	NewDopplerAdapter(testConfig(server.URL), zerolog.Nop()).FetchListings(context.Background())
	if calls != 2 {
		t.Errorf("expected paging to stop on a repeated cursor, got %d calls", calls)
	}
}

func TestDopplerAdapter_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null,"errors":[{"message":"bad field"}]}`)
	}))
	defer server.Close()

	res := NewDopplerAdapter(testConfig(server.URL), zerolog.Nop()).FetchListings(context.Background())
	if res.PageErrors != 1 || !errors.Is(res.LastError, ErrGraphQL) {
		t.Errorf("expected ErrGraphQL page error, got %d %v", res.PageErrors, res.LastError)
	}
	if !strings.Contains(res.LastError.Error(), "bad field") {
		t.Errorf("error should carry the message: %v", res.LastError)
	}
}

func TestTrenchesAdapter_NestedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{"data":{"tokens":[{"token_address":"%s"}],"pagination":{"hasMore":true}}}`, addrN(1))
		case "2":
			fmt.Fprintf(w, `{"data":{"tokens":[{"token_address":"%s"}],"pagination":{"hasMore":false}}}`, addrN(2))
		}
	}))
	defer server.Close()

	res := NewTrenchesAdapter(testConfig(server.URL), zerolog.Nop()).FetchListings(context.Background())
	if got := fieldStrings(res, "token_address"); len(got) != 2 {
		t.Errorf("expected 2 listings, got %v", got)
	}
}

func TestMoltlaunchAdapter_NextCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprintf(w, `{"launches":[{"tokenAddress":"%s"}],"nextCursor":"n1"}`, addrN(1))
		case "n1":
			fmt.Fprintf(w, `{"launches":[{"tokenAddress":"%s"}],"nextCursor":""}`, addrN(2))
		}
	}))
	defer server.Close()

	res := NewMoltlaunchAdapter(testConfig(server.URL), zerolog.Nop()).FetchListings(context.Background())
	if len(res.Listings) != 2 || res.Pages != 2 {
		t.Errorf("expected 2 listings over 2 pages, got %d over %d", len(res.Listings), res.Pages)
	}
}

func TestAdapter_SendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing api key, got %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"data":[],"hasMore":false}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = "secret"
	NewClankerAdapter(cfg, zerolog.Nop()).FetchListings(context.Background())
}

func TestBuild_SkipsUnconfigured(t *testing.T) {
	adapters := Build(Settings{
		domain.SourceClanker:  {BaseURL: "http://clanker.test"},
		domain.SourceMoltbook: {BaseURL: "http://moltbook.test"},
		domain.SourceClawnch:  {},
		domain.SourceBankr:    {BaseURL: "http://bankr.test"},
	}, zerolog.Nop())

	if len(adapters) != 2 {
		t.Fatalf("expected 2 adapters, got %d", len(adapters))
	}
	if adapters[0].Source() != domain.SourceClanker || adapters[1].Source() != domain.SourceMoltbook {
		t.Errorf("unexpected order: %s, %s", adapters[0].Source(), adapters[1].Source())
	}
}
