package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mem "stray-match/internal/adapters/storage/memory"
	"stray-match/internal/domain/animals"
	"stray-match/internal/ports/push"
	"stray-match/internal/ports/tiers"
	"stray-match/internal/ports/vision"
	"stray-match/internal/router"
)

type fixedModel struct{ text string }

func (m fixedModel) Complete(context.Context, vision.Request) (vision.Response, error) {
	return vision.Response{Text: m.text, Usage: vision.Usage{InputTokens: 900, OutputTokens: 30}}, nil
}

type capturingSender struct {
	mu   sync.Mutex
	sent []push.Message
}

func (s *capturingSender) Available() bool { return true }

func (s *capturingSender) Send(_ context.Context, msg push.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *capturingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fixture struct {
	srv    *httptest.Server
	rt     *router.Router
	sender *capturingSender
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	now := time.Now()
	store := mem.NewAnimalsRepo()
	here := animals.Coordinates{Latitude: 40.7128, Longitude: -74.0060}

	mustPut(t, store.PutLostAnimal(animals.LostAnimal{
		ID: "lost-1", OwnerID: "owner-1", Name: "Whiskers",
		AnimalType: animals.TypeCat, Location: here, Color: "white",
		PhotoRef: "https://img/whiskers.jpg", Status: animals.LostActive,
		CreatedAt: now.Add(-48 * time.Hour),
	}))
	mustPut(t, store.PutLostAnimal(animals.LostAnimal{
		ID: "lost-2", OwnerID: "owner-2", Name: "Snow",
		AnimalType: animals.TypeCat, Location: here, Color: "white and grey",
		PhotoRef: "https://img/snow.jpg", Status: animals.LostActive,
		CreatedAt: now.Add(-24 * time.Hour),
	}))
	mustPut(t, store.PutSighting(animals.Sighting{
		ID: "sighting-1", ReporterID: "reporter-1",
		AnimalType: animals.TypeCat, Location: animals.Coordinates{Latitude: 40.7200, Longitude: -74.0000},
		Color: "white", PhotoRef: "https://img/seen.jpg", SpottedAt: now.Add(-time.Hour),
	}))

	profiles := mem.NewProfilesRepo()
	profiles.Put("owner-1", tiers.Free, "ExponentPushToken[owner-1]")

	sender := &capturingSender{}
	rt := router.NewRouter(router.Options{
		Animals:  store,
		Profiles: profiles,
		Vision:   fixedModel{text: `{"confidence": 92, "reason": "same white coat"}`},
		Push:     sender,
	})

	srv := httptest.NewServer(rt)
	t.Cleanup(srv.Close)
	return fixture{srv: srv, rt: rt, sender: sender}
}

func TestHTTP_EndToEnd_SightingMatchesAndRateLimit(t *testing.T) {
	f := newFixture(t)

	// 1) El reportero dispara el pipeline: dos gatos perdidos, dos análisis.
	{
		st, body := doReq(t, f.srv.URL, "POST", "/match", "reporter-1", map[string]any{"sightingId": "sighting-1"})
		if st != http.StatusOK {
			t.Fatalf("expected 200 run match, got %d body=%s", st, string(body))
		}
	}

	// 2) Solo owner-1 tiene token: un push.
	if n := f.sender.count(); n != 1 {
		t.Fatalf("expected 1 push, got %d", n)
	}

	// 3) El dueño ve su match.
	{
		st, body := doReq(t, f.srv.URL, "GET", "/matches?lostAnimalId=lost-1", "owner-1", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list matches, got %d body=%s", st, string(body))
		}
		var items []struct {
			SightingID string `json:"sightingId"`
			Confidence int    `json:"confidence"`
		}
		if err := json.Unmarshal(body, &items); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(items) != 1 || items[0].SightingID != "sighting-1" || items[0].Confidence != 92 {
			t.Fatalf("unexpected matches: %+v", items)
		}
	}

	// 4) Otro usuario no puede listar matches ajenos.
	{
		st, _ := doReq(t, f.srv.URL, "GET", "/matches?lostAnimalId=lost-1", "reporter-1", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 for non-owner, got %d", st)
		}
	}

	// 5) Free: 2 análisis por minuto ya consumidos => 429.
	{
		req := newReq(t, f.srv.URL, "POST", "/match", "reporter-1", map[string]any{"sightingId": "sighting-1"})
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do request: %v", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", res.StatusCode)
		}
		if res.Header.Get("Retry-After") == "" || res.Header.Get("X-RateLimit-Reset") == "" {
			t.Fatalf("missing rate limit headers: %v", res.Header)
		}
	}

	// 6) Un caller de servicio no pasa por el rate limiter; el par ya existe, sin push nuevo.
	{
		req := newReq(t, f.srv.URL, "POST", "/match", "db-webhook", map[string]any{"sightingId": "sighting-1"})
		req.Header.Set("X-Debug-Role", "service_role")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do request: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for service caller, got %d", res.StatusCode)
		}
		if n := f.sender.count(); n != 1 {
			t.Fatalf("expected no duplicate push, got %d", n)
		}
	}
}

func TestHTTP_MatchErrors(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		user string
		body map[string]any
		want int
	}{
		{"no auth", "", map[string]any{"sightingId": "sighting-1"}, http.StatusUnauthorized},
		{"both ids", "u1", map[string]any{"sightingId": "sighting-1", "lostAnimalId": "lost-1"}, http.StatusBadRequest},
		{"no ids", "u1", map[string]any{}, http.StatusBadRequest},
		{"unknown sighting", "u1", map[string]any{"sightingId": "nope"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, body := doReq(t, f.srv.URL, "POST", "/match", tc.user, tc.body)
			if st != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, st, string(body))
			}
		})
	}
}

func TestHTTP_NearbyAlertNotifiesOncePerArea(t *testing.T) {
	f := newFixture(t)

	loc := map[string]any{"latitude": 40.7130, "longitude": -74.0050}

	var first struct {
		Sightings []map[string]any `json:"sightings"`
		Notified  bool             `json:"notified"`
	}
	st, body := doReq(t, f.srv.URL, "POST", "/alerts/nearby", "owner-1", loc)
	if st != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", st, string(body))
	}
	_ = json.Unmarshal(body, &first)
	if len(first.Sightings) != 1 || !first.Notified {
		t.Fatalf("unexpected first response: %s", string(body))
	}

	var second struct {
		Notified bool `json:"notified"`
	}
	_, body = doReq(t, f.srv.URL, "POST", "/alerts/nearby", "owner-1", loc)
	_ = json.Unmarshal(body, &second)
	if second.Notified {
		t.Fatalf("same area must not notify twice: %s", string(body))
	}
}

func TestRouter_MaintainCompactsUsageLog(t *testing.T) {
	f := newFixture(t)

	if st, body := doReq(t, f.srv.URL, "POST", "/match", "reporter-1", map[string]any{"sightingId": "sighting-1"}); st != http.StatusOK {
		t.Fatalf("expected 200 run match, got %d body=%s", st, string(body))
	}

	if got := f.rt.Maintain(time.Now())["usage_events"]; got != 0 {
		t.Fatalf("expected recent usage kept, got %d removed", got)
	}
	// Pasado el día, los dos análisis salen del log.
	if got := f.rt.Maintain(time.Now().Add(25 * time.Hour))["usage_events"]; got != 2 {
		t.Fatalf("expected 2 usage events compacted, got %d", got)
	}
}

func TestHTTP_OperationalRoutes(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/health", "/metrics", "/swagger/doc.json"} {
		st, body := doReq(t, f.srv.URL, "GET", path, "", nil)
		if st != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d body=%s", path, st, string(body))
		}
	}
}

func mustPut(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func newReq(t *testing.T, baseURL, method, path, debugUserID string, body any) *http.Request {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}
	return req
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	res, err := http.DefaultClient.Do(newReq(t, baseURL, method, path, debugUserID, body))
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
