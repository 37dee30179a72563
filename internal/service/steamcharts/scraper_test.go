package steamcharts

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

const historyHTML = `<html><body>
<table class="common-table">
<thead><tr><th>Month</th><th>Avg. Players</th><th>Gain</th><th>% Gain</th><th>Peak Players</th></tr></thead>
<tbody>
<tr><td>Last 30 Days</td><td>854,801.1</td><td>-12,005.0</td><td>-1.38%</td><td>1,458,374</td></tr>
<tr><td>January 2024</td><td>854,801</td><td>+34,567</td><td>+4.21%</td><td>1,458,374</td></tr>
<tr><td>December 2023</td><td>820,234</td><td>N/A</td><td>N/A</td><td>1,320,115</td></tr>
</tbody>
</table>
</body></html>`

func newTestScraper(t *testing.T, handler http.HandlerFunc) *Scraper {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gov := governor.NewGovernor(domain.SourceSteamCharts.String(), 1, logger)
	gov.RegisterEndpoint(EndpointHistory, time.Millisecond)
	exec := fetch.NewExecutor(domain.SourceSteamCharts.String(), nil, logger)

	return NewScraper(server.Client(), server.URL, "test-agent", gov, exec, logger)
}

func TestFetchHistory(t *testing.T) {
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/730" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(historyHTML))
	})

	records, failures := scraper.FetchHistory(context.Background(), []int{730})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	// "Last 30 Days" 행은 제외된다.
	if len(records) != 2 {
		t.Fatalf("expected 2 monthly records, got %d", len(records))
	}

	jan := records[0]
	if jan.Year != 2024 || jan.Month != 1 {
		t.Fatalf("unexpected month: %d-%d", jan.Year, jan.Month)
	}
	if jan.AvgPlayers == nil || *jan.AvgPlayers != 854801 {
		t.Fatalf("unexpected avg players: %v", jan.AvgPlayers)
	}
	if jan.PeakPlayers == nil || *jan.PeakPlayers != 1458374 {
		t.Fatalf("unexpected peak players: %v", jan.PeakPlayers)
	}
	if jan.Gain == nil || *jan.Gain != 34567 {
		t.Fatalf("unexpected gain: %v", jan.Gain)
	}
	if jan.GainPct == nil || *jan.GainPct != 4.21 {
		t.Fatalf("unexpected gain pct: %v", jan.GainPct)
	}

	dec := records[1]
	if dec.Gain != nil || dec.GainPct != nil {
		t.Fatalf("expected N/A gain fields to be nil: %+v", dec)
	}
	if dec.AvgPlayers == nil || *dec.AvgPlayers != 820234 {
		t.Fatalf("unexpected december avg: %v", dec.AvgPlayers)
	}
}

func TestFetchHistoryMissingTable(t *testing.T) {
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>no charts here</p></body></html>`))
	})

	records, failures := scraper.FetchHistory(context.Background(), []int{42})
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	if len(failures) != 1 || !failures[0].Permanent {
		t.Fatalf("expected permanent parse failure, got %+v", failures)
	}
}

func TestFetchHistoryNotFoundIsolated(t *testing.T) {
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/app/999" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(historyHTML))
	})

	records, failures := scraper.FetchHistory(context.Background(), []int{999, 730})

	// 999의 404가 730 수집을 막지 않는다.
	if len(records) != 2 {
		t.Fatalf("expected 2 records from appid 730, got %d", len(records))
	}
	if len(failures) != 1 || failures[0].AppID != 999 || !failures[0].Permanent {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}

func TestNegativePlayerCountRejected(t *testing.T) {
	html := `<table class="common-table"><tr>
		<td>March 2024</td><td>-5</td><td>-5</td><td>-1.0%</td><td>100</td></tr></table>`

	records, err := parseHistoryHTML(1, html)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	// 플레이어 수는 음수를 허용하지 않고, Gain은 허용한다.
	if records[0].AvgPlayers != nil {
		t.Fatalf("expected negative avg players to be nil")
	}
	if records[0].Gain == nil || *records[0].Gain != -5 {
		t.Fatalf("unexpected gain: %v", records[0].Gain)
	}
}
