package steamspy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kapu/steam-analytics-etl-go/internal/domain"
	"github.com/kapu/steam-analytics-etl-go/internal/service/fetch"
	"github.com/kapu/steam-analytics-etl-go/internal/service/governor"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gov := governor.NewGovernor(domain.SourceSteamSpy.String(), 1, logger)
	gov.RegisterEndpoint(EndpointAll, time.Millisecond)
	gov.RegisterEndpoint(EndpointDetail, time.Millisecond)
	exec := fetch.NewExecutor(domain.SourceSteamSpy.String(), nil, logger)

	return NewClient(server.Client(), server.URL, "test-agent", gov, exec, logger)
}

const allResponse = `{
	"730": {"appid": 730, "name": "Counter-Strike 2", "developer": "Valve", "publisher": "Valve",
		"positive": 1000, "negative": 100, "owners": "50,000,000 .. 100,000,000",
		"price": "0", "initialprice": "0", "discount": "0",
		"tags": {"FPS": 90, "Shooter": 80}, "genre": "Action, Free To Play"},
	"570": {"appid": 570, "name": "Dota 2", "developer": "Valve", "publisher": "Valve",
		"positive": 2000, "negative": 200, "owners": "100,000,000 .. 200,000,000",
		"price": "0", "initialprice": "0", "discount": "0",
		"tags": [], "genre": "Action, Strategy"},
	"999": {"appid": 999, "name": "", "owners": ""}
}`

func TestDiscoverAll(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("request") != "all" {
			t.Errorf("unexpected request param: %s", r.URL.Query().Get("request"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(allResponse))
	})

	records, failures, err := client.DiscoverAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// appid 오름차순
	if records[0].AppID != 570 || records[1].AppID != 730 {
		t.Fatalf("unexpected order: %d, %d", records[0].AppID, records[1].AppID)
	}

	if len(failures) != 1 || failures[0].AppID != 999 {
		t.Fatalf("expected failure for appid 999, got %+v", failures)
	}
	if !failures[0].Permanent {
		t.Fatalf("expected parse failure to be permanent")
	}

	cs2 := records[1]
	if cs2.OwnersMin == nil || *cs2.OwnersMin != 50000000 {
		t.Fatalf("unexpected owners min: %v", cs2.OwnersMin)
	}
	if len(cs2.Tags) != 2 || cs2.Tags[0] != "FPS" {
		t.Fatalf("unexpected tags: %v", cs2.Tags)
	}
	if len(cs2.Genres) != 2 || cs2.Genres[0] != "Action" {
		t.Fatalf("unexpected genres: %v", cs2.Genres)
	}

	// Dota 2의 tags는 빈 배열 형태
	if len(records[0].Tags) != 0 {
		t.Fatalf("expected no tags for empty array payload, got %v", records[0].Tags)
	}
}

func TestDiscoverAllAppliesLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(allResponse))
	})

	records, _, err := client.DiscoverAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record with limit, got %d", len(records))
	}
	if records[0].AppID != 570 {
		t.Fatalf("expected lowest appid first, got %d", records[0].AppID)
	}
}

func TestFetchDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("appid") {
		case "440":
			_, _ = w.Write([]byte(`{"appid": 440, "name": "Team Fortress 2", "developer": "Valve",
				"publisher": "Valve", "positive": 500, "negative": 50,
				"owners": "50,000,000 .. 100,000,000",
				"price": "999", "initialprice": "1999", "discount": "50",
				"tags": {"FPS": 10}, "genre": "Action"}`))
		case "123":
			http.Error(w, "not found", http.StatusNotFound)
		default:
			t.Errorf("unexpected appid: %s", r.URL.Query().Get("appid"))
		}
	})

	records, failures := client.FetchDetails(context.Background(), []int{440, 123})

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	tf2 := records[0]
	if tf2.AppID != 440 || tf2.Name != "Team Fortress 2" {
		t.Fatalf("unexpected record: %+v", tf2)
	}

	// SteamSpy 가격 폴백: 센트 → 달러 변환 확인
	if tf2.Pricing == nil {
		t.Fatalf("expected fallback pricing snapshot")
	}
	if tf2.Pricing.CurrentPrice != 9.99 || tf2.Pricing.OriginalPrice != 19.99 {
		t.Fatalf("unexpected pricing: %+v", tf2.Pricing)
	}
	if !tf2.Pricing.IsDiscountActive || tf2.Pricing.DiscountPct != 50 {
		t.Fatalf("expected active 50%% discount: %+v", tf2.Pricing)
	}

	// 실패 격리: 123의 404가 배치를 중단시키지 않는다.
	if len(failures) != 1 || failures[0].AppID != 123 {
		t.Fatalf("expected failure for appid 123, got %+v", failures)
	}
	if !failures[0].Permanent {
		t.Fatalf("expected 404 to be permanent")
	}
}

func TestFetchDetailsStopsOnCancel(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"appid": 1, "name": "Game"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, _ := client.FetchDetails(ctx, []int{1, 2, 3})
	if len(records) != 0 {
		t.Fatalf("expected no records after cancellation, got %d", len(records))
	}
	if calls != 0 {
		t.Fatalf("expected no HTTP calls after cancellation, got %d", calls)
	}
}

func TestDiscountClampedToValidRange(t *testing.T) {
	tests := map[string]struct {
		discount string
		want     float64
		active   bool
	}{
		"above range": {discount: "150", want: 100, active: true},
		"below range": {discount: "-10", want: 0, active: false},
		"in range":    {discount: "50", want: 50, active: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"appid": 440, "name": "Team Fortress 2",
					"price": "999", "initialprice": "1999", "discount": "` + tc.discount + `",
					"tags": {}, "genre": "Action"}`))
			})

			records, failures := client.FetchDetails(context.Background(), []int{440})
			if len(failures) != 0 {
				t.Fatalf("unexpected failures: %+v", failures)
			}
			pricing := records[0].Pricing
			if pricing == nil {
				t.Fatalf("expected fallback pricing snapshot")
			}
			if pricing.DiscountPct != tc.want {
				t.Fatalf("expected discount %.0f, got %.0f", tc.want, pricing.DiscountPct)
			}
			if pricing.IsDiscountActive != tc.active {
				t.Fatalf("unexpected discount active flag: %+v", pricing)
			}
		})
	}
}

func TestFreeGameHasNoFallbackPricing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"appid": 730, "name": "Counter-Strike 2",
			"price": "0", "initialprice": "0", "discount": "0", "tags": {}, "genre": ""}`))
	})

	records, failures := client.FetchDetails(context.Background(), []int{730})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if records[0].Pricing != nil {
		t.Fatalf("expected no pricing snapshot for free game, got %+v", records[0].Pricing)
	}
}
