package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"famcal/internal/model"
	"famcal/internal/recurring"
	"famcal/internal/store"
)

var seoul = time.FixedZone("KST", 9*60*60)

func feed(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

func byKey(items []Imported) map[model.DateKey][]string {
	out := map[model.DateKey][]string{}
	for _, it := range items {
		out[it.Key] = append(out[it.Key], it.Title)
	}
	return out
}

func TestParse_SingleRecurringAndTimed(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:single@test",
		"DTSTAMP:20250101T000000Z",
		"DTSTART;VALUE=DATE:20251107",
		"DTEND;VALUE=DATE:20251108",
		"SUMMARY:Dentist",
		"DESCRIPTION:Bring card",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:weekly@test",
		"DTSTAMP:20250101T000000Z",
		"DTSTART;VALUE=DATE:20251103",
		"DTEND;VALUE=DATE:20251104",
		"RRULE:FREQ=WEEKLY;COUNT=4",
		"EXDATE;VALUE=DATE:20251110",
		"SUMMARY:Swim",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:timed@test",
		"DTSTAMP:20250101T000000Z",
		"DTSTART:20251120T230000Z",
		"DTEND:20251121T000000Z",
		"SUMMARY:Call",
		"END:VEVENT",
	)
	from := time.Date(2025, time.November, 1, 0, 0, 0, 0, seoul)
	to := time.Date(2025, time.December, 1, 0, 0, 0, 0, seoul)

	items, err := Parse(body, seoul, from, to)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := byKey(items)

	want := map[model.DateKey]string{
		"2025-11-07": "Dentist",
		"2025-11-03": "Swim",
		"2025-11-17": "Swim",
		"2025-11-24": "Swim",
		"2025-11-21": "Call",
	}
	for k, title := range want {
		if len(got[k]) != 1 || got[k][0] != title {
			t.Errorf("%s = %v, want [%s]", k, got[k], title)
		}
	}
	if len(got["2025-11-10"]) != 0 {
		t.Errorf("EXDATE not honoured: %v", got["2025-11-10"])
	}
	if len(items) != len(want) {
		t.Errorf("got %d items, want %d: %+v", len(items), len(want), items)
	}
	for _, it := range items {
		if it.Title == "Dentist" && it.Notes != "Bring card" {
			t.Errorf("Dentist notes = %q", it.Notes)
		}
	}
}

func TestParse_MultiDayAllDayClippedToRange(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:trip@test",
		"DTSTART;VALUE=DATE:20251030",
		"DTEND;VALUE=DATE:20251103",
		"SUMMARY:Trip",
		"END:VEVENT",
	)
	from := time.Date(2025, time.November, 1, 0, 0, 0, 0, seoul)
	to := time.Date(2025, time.December, 1, 0, 0, 0, 0, seoul)

	items, err := Parse(body, seoul, from, to)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	var keys []model.DateKey
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	if len(keys) != 2 || keys[0] != "2025-11-01" || keys[1] != "2025-11-02" {
		t.Errorf("keys = %v, want [2025-11-01 2025-11-02]", keys)
	}
}

func TestParse_Errors(t *testing.T) {
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, seoul)
	if _, err := Parse([]byte("  \n"), seoul, from, from.AddDate(1, 0, 0)); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty body error = %v, want ErrEmpty", err)
	}
	if _, err := Parse(feed(), seoul, from, from); err == nil {
		t.Error("empty range should fail")
	}
}

func TestExport_ContainsUserAndRecurringEvents(t *testing.T) {
	data := store.Data{"2025-11-07": {{ID: "u1", Category: model.CategoryEon, Title: "Dentist", Notes: "Bring card", CreatedAt: 1}}}
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, seoul)
	to := from.AddDate(1, 0, 0)

	out, err := Export(data, recurring.Default(), from, to, seoul)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	for _, want := range []string{
		"UID:u1@famcal",
		"DTSTART;VALUE=DATE:20251107",
		"SUMMARY:Dentist",
		"UID:rec-yunhee-birthday@famcal",
		"FREQ=YEARLY",
		"BYMONTHDAY=7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q", want)
		}
	}
	for _, id := range []string{"rec-daegu-grandpa-memorial-2025-", "rec-gangneung-grandpa-birthday-2025-"} {
		if n := strings.Count(out, "UID:"+id); n != 1 {
			t.Errorf("lunar entry %s emitted %d times, want 1", id, n)
		}
	}
}

func TestExport_RoundTripsThroughParse(t *testing.T) {
	data := store.Data{"2025-11-07": {{ID: "u1", Category: model.CategoryEon, Title: "Dentist"}}}
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, seoul)
	to := from.AddDate(1, 0, 0)

	out, err := Export(data, recurring.Default(), from, to, seoul)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	items, err := Parse([]byte(out), seoul, from, to)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := byKey(items)
	if titles := got["2025-11-07"]; len(titles) != 1 || titles[0] != "Dentist" {
		t.Errorf("2025-11-07 = %v", titles)
	}
	if titles := got["2025-05-07"]; len(titles) != 1 || titles[0] != "윤희 생일" {
		t.Errorf("2025-05-07 = %v, want the yearly birthday", titles)
	}
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cal.ics":
			w.Header().Set("Content-Type", "text/calendar")
			w.Write(feed())
		case "/big.ics":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 32)
	ctx := context.Background()

	if _, err := f.Fetch(ctx, srv.URL+"/missing.ics"); err == nil {
		t.Error("404 should fail")
	}
	if _, err := f.Fetch(ctx, srv.URL+"/big.ics"); err == nil {
		t.Error("oversized body should fail")
	}
	if _, err := f.Fetch(ctx, "ftp://example.com/cal.ics"); err == nil {
		t.Error("ftp scheme should fail")
	}

	f = NewFetcher(srv.Client(), 0)
	body, err := f.Fetch(ctx, srv.URL+"/cal.ics")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.HasPrefix(string(body), "BEGIN:VCALENDAR") {
		t.Errorf("body = %q", body)
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://example.com/private/abc.ics?token=x"); got != "https://example.com/...(redacted)" {
		t.Errorf("redactURL() = %q", got)
	}
	if got := redactURL("not a url"); got != "ics://...(redacted)" {
		t.Errorf("redactURL() = %q", got)
	}
}
