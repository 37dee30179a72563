package steamstore

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
	gov := governor.NewGovernor(domain.SourceSteamStore.String(), 1, logger)
	gov.RegisterEndpoint(EndpointAppDetails, time.Millisecond)
	exec := fetch.NewExecutor(domain.SourceSteamStore.String(), nil, logger)

	return NewClient(server.Client(), server.URL, "test-agent", "us", gov, exec, logger)
}

func TestFetchPricingPaidGame(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cc"); got != "us" {
			t.Errorf("unexpected country code: %s", got)
		}
		_, _ = w.Write([]byte(`{"292030": {"success": true, "data": {
			"name": "The Witcher 3: Wild Hunt",
			"type": "game",
			"is_free": false,
			"developers": ["CD PROJEKT RED"],
			"publishers": ["CD PROJEKT RED"],
			"price_overview": {"currency": "USD", "initial": 3999, "final": 999, "discount_percent": 75},
			"release_date": {"coming_soon": false, "date": "May 18, 2015"}
		}}}`))
	})

	records, failures := client.FetchPricing(context.Background(), []int{292030})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.AppID != 292030 || r.IsFree {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.Snapshot.CurrentPrice != 9.99 || r.Snapshot.OriginalPrice != 39.99 {
		t.Fatalf("unexpected prices: %+v", r.Snapshot)
	}
	if !r.Snapshot.IsDiscountActive || r.Snapshot.DiscountPct != 75 {
		t.Fatalf("expected active 75%% discount: %+v", r.Snapshot)
	}
	if r.ReleaseDate == nil || r.ReleaseDate.Year() != 2015 || r.ReleaseDate.Month() != time.May {
		t.Fatalf("unexpected release date: %v", r.ReleaseDate)
	}
	if r.Developer != "CD PROJEKT RED" || r.Publisher != "CD PROJEKT RED" {
		t.Fatalf("unexpected developer/publisher: %q / %q", r.Developer, r.Publisher)
	}
}

func TestFetchPricingFreeGame(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"730": {"success": true, "data": {
			"name": "Counter-Strike 2",
			"type": "game",
			"is_free": true,
			"release_date": {"coming_soon": false, "date": "Aug 21, 2012"}
		}}}`))
	})

	records, failures := client.FetchPricing(context.Background(), []int{730})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	r := records[0]
	if !r.IsFree {
		t.Fatalf("expected free game")
	}
	// price_overview 없음 → 제로 값 스냅샷
	if r.Snapshot.CurrentPrice != 0 || r.Snapshot.IsDiscountActive {
		t.Fatalf("unexpected snapshot for free game: %+v", r.Snapshot)
	}
	if r.ReleaseDate == nil || r.ReleaseDate.Year() != 2012 {
		t.Fatalf("unexpected release date: %v", r.ReleaseDate)
	}
}

func TestFetchPricingClampsDiscount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"292030": {"success": true, "data": {
			"name": "The Witcher 3: Wild Hunt",
			"is_free": false,
			"price_overview": {"currency": "USD", "initial": 3999, "final": 999, "discount_percent": 150},
			"release_date": {"coming_soon": false, "date": "May 18, 2015"}
		}}}`))
	})

	records, failures := client.FetchPricing(context.Background(), []int{292030})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	// 범위를 벗어난 할인율은 100으로 제한된다.
	if records[0].Snapshot.DiscountPct != 100 {
		t.Fatalf("expected discount clamped to 100, got %.0f", records[0].Snapshot.DiscountPct)
	}
	if !records[0].Snapshot.IsDiscountActive {
		t.Fatalf("expected clamped discount to stay active")
	}
}

func TestFetchPricingFailureIsolation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("appids") {
		case "10":
			_, _ = w.Write([]byte(`{"10": {"success": false}}`))
		case "20":
			_, _ = w.Write([]byte(`{"20": {"success": true, "data": {
				"name": "Game Twenty", "is_free": true,
				"release_date": {"coming_soon": true, "date": ""}
			}}}`))
		}
	})

	records, failures := client.FetchPricing(context.Background(), []int{10, 20})

	if len(records) != 1 || records[0].AppID != 20 {
		t.Fatalf("expected only appid 20 to succeed, got %+v", records)
	}
	if len(failures) != 1 || failures[0].AppID != 10 {
		t.Fatalf("expected failure for appid 10, got %+v", failures)
	}
	if !failures[0].Permanent {
		t.Fatalf("expected success=false to be permanent")
	}
	// 미출시작은 출시일이 비어있어야 한다.
	if records[0].ReleaseDate != nil {
		t.Fatalf("expected no release date for coming soon title")
	}
}

func TestFetchPricingServerErrorIsTransient(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "oops", http.StatusInternalServerError)
	})

	_, failures := client.FetchPricing(context.Background(), []int{30})
	if len(failures) != 1 {
		t.Fatalf("expected failure, got %+v", failures)
	}
	if failures[0].Permanent {
		t.Fatalf("expected 5xx failure to be transient")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts for transient failure, got %d", attempts)
	}
}
