package oceancolor

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func quietClient(baseURL, searchURL string) *Client {
	return NewClient(baseURL, searchURL, 5*time.Second).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name      string
		composite Composite
		product   string
		period    Period
		want      string
	}{
		{
			name:      "8-day sst",
			composite: EightDay,
			product:   "sst",
			period:    Period{d(2021, 3, 2), d(2021, 3, 9)},
			want:      "AQUA_MODIS.20210302_20210309.L3m.8D.SST.sst.4km.nc",
		},
		{
			name:      "8-day chlorophyll",
			composite: EightDay,
			product:   "chlor_a",
			period:    Period{d(2021, 12, 27), d(2021, 12, 31)},
			want:      "AQUA_MODIS.20211227_20211231.L3m.8D.CHL.chlor_a.4km.nc",
		},
		{
			name:      "daily chlorophyll",
			composite: Daily,
			product:   "chlor_a",
			period:    Period{d(2024, 1, 5), d(2024, 1, 5)},
			want:      "AQUA_MODIS.20240105.L3m.DAY.CHL.chlor_a.4km.nc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LookupProduct(tt.product)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := FileName(DefaultPlatform, tt.composite, p, tt.period, DefaultResolution); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClient_Files(t *testing.T) {
	c := quietClient("", "")
	files, err := c.Files(Request{Product: "sst", Start: d(2021, 1, 1), End: d(2021, 1, 20)})
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	wantURL := "https://oceandata.sci.gsfc.nasa.gov/ob/getfile/AQUA_MODIS.20210117_20210124.L3m.8D.SST.sst.4km.nc"
	if files[2].URL != wantURL {
		t.Errorf("expected %s, got %s", wantURL, files[2].URL)
	}

	if _, err := c.Files(Request{Product: "salinity", Start: d(2021, 1, 1), End: d(2021, 1, 2)}); err == nil {
		t.Error("expected error for unknown product")
	}
	if _, err := c.Files(Request{Product: "sst", Start: d(2021, 2, 1), End: d(2021, 1, 2)}); err == nil {
		t.Error("expected error for reversed range")
	}

	daily, err := quietClient("http://mirror.example/files", "").WithPlatform("TERRA_MODIS", "9km").
		Files(Request{Product: "chlor_a", Composite: Daily, Start: d(2021, 1, 1), End: d(2021, 1, 2)})
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	if daily[1].URL != "http://mirror.example/files/TERRA_MODIS.20210102.L3m.DAY.CHL.chlor_a.9km.nc" {
		t.Errorf("unexpected daily URL %s", daily[1].URL)
	}
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search") != "AQUA_MODIS.*.L3m.8D.SST.sst.4km.nc" {
			t.Errorf("unexpected search pattern %q", q.Get("search"))
		}
		if q.Get("sdate") != "2021-01-01" || q.Get("edate") != "2021-01-24" {
			t.Errorf("unexpected dates %q..%q", q.Get("sdate"), q.Get("edate"))
		}
		if q.Get("results_as_file") != "1" {
			t.Error("expected results_as_file=1")
		}
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "AQUA_MODIS.20210101_20210108.L3m.8D.SST.sst.4km.nc\n\n"+
			"3f2a  AQUA_MODIS.20210117_20210124.L3m.8D.SST.sst.4km.nc\n")
	}))
	defer server.Close()

	c := quietClient("", server.URL)
	req := Request{Product: "sst", Start: d(2021, 1, 1), End: d(2021, 1, 20)}
	files, err := c.Files(req)
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	published, err := c.Published(context.Background(), req, files)
	if err != nil {
		t.Fatalf("Published failed: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("expected 2 published files, got %d", len(published))
	}
	if !strings.Contains(published[1].Name, "20210117") {
		t.Errorf("unexpected file %s", published[1].Name)
	}
}

func TestClient_Search_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down")
	}))
	defer server.Close()

	_, err := quietClient("", server.URL).Search(context.Background(), SearchParams{Pattern: "*"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestParseComposite(t *testing.T) {
	for in, want := range map[string]Composite{"": EightDay, "8day": EightDay, "8D": EightDay, "daily": Daily, "DAY": Daily} {
		got, err := ParseComposite(in)
		if err != nil || got != want {
			t.Errorf("ParseComposite(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseComposite("monthly"); err == nil {
		t.Error("expected error for monthly")
	}
}
