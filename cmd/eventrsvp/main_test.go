package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/example/eventrsvp/internal/config"
	"github.com/example/eventrsvp/internal/persistence"
	"github.com/example/eventrsvp/internal/persistence/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStorage(t *testing.T) *sqlite.Storage {
	t.Helper()
	cfg := config.Default()
	cfg.SQLiteDSN = filepath.Join(t.TempDir(), "eventrsvp.db")
	storage, err := openStorage(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openStorage failed: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

// fakeGoogleCalendar keeps events in memory and records request methods.
type fakeGoogleCalendar struct {
	mu      sync.Mutex
	events  map[string]*gcal.Event
	methods []string
	auth    []string
}

func (f *fakeGoogleCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.methods = append(f.methods, r.Method)
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	var body gcal.Event
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && len(parts) == 3:
		body.Id = "remote-1"
		f.events[body.Id] = &body
		_ = json.NewEncoder(w).Encode(body)
	case len(parts) == 4:
		existing, ok := f.events[parts[3]]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodPut:
			body.Id = existing.Id
			existing = &body
			f.events[existing.Id] = existing
		case http.MethodPatch:
			existing.Attendees = body.Attendees
		}
		_ = json.NewEncoder(w).Encode(existing)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGoogleCalendar) event(id string) *gcal.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id]
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec.Code
}

type eventEnvelope struct {
	Event struct {
		ID          string `json:"id"`
		Hash        string `json:"hash"`
		GCalEventID string `json:"gcal_event_id"`
		IsDeleted   bool   `json:"is_deleted"`
	} `json:"event"`
}

func TestBuildHandler_CalendarFlow(t *testing.T) {
	ctx := context.Background()
	storage := openTestStorage(t)

	api := &fakeGoogleCalendar{events: make(map[string]*gcal.Event)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.DeploymentHost = "rsvp.example.com"
	cfg.Google.ClientID = "client"
	cfg.Google.ClientSecret = "secret"
	cfg.Google.QPS = 100

	token := &oauth2.Token{AccessToken: "stored-token", TokenType: "Bearer", Expiry: time.Now().Add(24 * time.Hour)}
	if err := storeGoogleToken(ctx, storage.Credentials, cfg.Google.CredentialOwner, "calendar@example.com", token, time.Now); err != nil {
		t.Fatalf("storeGoogleToken failed: %v", err)
	}

	handler := buildHandler(ctx, cfg, storage, discardLogger(), option.WithEndpoint(srv.URL+"/"))

	var proposer struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if code := doJSON(t, handler, http.MethodPost, "/users", map[string]any{"email": "host@example.com", "nickname": "Host"}, &proposer); code != http.StatusCreated {
		t.Fatalf("create user: status %d", code)
	}

	var created eventEnvelope
	code := doJSON(t, handler, http.MethodPost, "/events", map[string]any{
		"title":          "Rooftop drinks",
		"start":          "2024-06-01T18:00:00Z",
		"end":            "2024-06-01T21:00:00Z",
		"proposer_id":    proposer.User.ID,
		"gcal_requested": true,
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create event: status %d", code)
	}
	if created.Event.GCalEventID != "remote-1" || len(created.Event.Hash) != hashLength {
		t.Fatalf("expected linked event with generated hash, got %#v", created.Event)
	}
	remote := api.event("remote-1")
	if remote == nil || remote.Source == nil || remote.Source.Url != "https://rsvp.example.com/rsvp/"+created.Event.Hash {
		t.Fatalf("unexpected remote event: %#v", remote)
	}

	var rsvp struct {
		Rsvp struct {
			IsAddedToGoogleCalendar bool `json:"is_added_to_google_calendar"`
		} `json:"rsvp"`
	}
	code = doJSON(t, handler, http.MethodPost, "/rsvp/"+created.Event.Hash, map[string]any{"email": "guest@example.com", "add_to_calendar": true}, &rsvp)
	if code != http.StatusCreated {
		t.Fatalf("create rsvp: status %d", code)
	}
	if !rsvp.Rsvp.IsAddedToGoogleCalendar {
		t.Fatalf("expected rsvp to be marked as added to the calendar")
	}
	if attendees := api.event("remote-1").Attendees; len(attendees) != 1 || attendees[0].Email != "guest@example.com" {
		t.Fatalf("unexpected remote attendees: %#v", attendees)
	}

	var batch struct {
		Synced []struct {
			RemoteEventID string `json:"remote_event_id"`
			EventID       string `json:"event_id"`
		} `json:"synced"`
	}
	code = doJSON(t, handler, http.MethodPut, "/events", map[string]any{"events": []map[string]any{{
		"id":    created.Event.ID,
		"title": "Rooftop drinks (moved)",
		"start": "2024-06-02T18:00:00Z",
		"end":   "2024-06-02T21:00:00Z",
	}}}, &batch)
	if code != http.StatusOK {
		t.Fatalf("update events: status %d", code)
	}
	if len(batch.Synced) != 1 || batch.Synced[0].RemoteEventID != "remote-1" || batch.Synced[0].EventID != created.Event.ID {
		t.Fatalf("unexpected synced pairs: %#v", batch.Synced)
	}
	updated := api.event("remote-1")
	if updated.Summary != "Rooftop drinks (moved)" || len(updated.Attendees) != 1 {
		t.Fatalf("expected attendees to survive the update, got %#v", updated)
	}
	if !strings.Contains(updated.Description, "Proposed by Host") {
		t.Fatalf("expected proposer line in description, got %q", updated.Description)
	}

	code = doJSON(t, handler, http.MethodDelete, "/events", map[string]any{"event_ids": []string{created.Event.ID}}, &batch)
	if code != http.StatusOK {
		t.Fatalf("delete events: status %d", code)
	}
	if summary := api.event("remote-1").Summary; !strings.HasPrefix(summary, "CANCELLED: ") {
		t.Fatalf("expected cancelled remote title, got %q", summary)
	}

	for _, header := range api.auth {
		if header != "Bearer stored-token" {
			t.Fatalf("expected stored token on every call, got %q", header)
		}
	}
}

func TestBuildHandler_WithoutCalendar(t *testing.T) {
	storage := openTestStorage(t)
	cfg := config.Default()
	cfg.DeploymentHost = "localhost:3000"
	handler := buildHandler(context.Background(), cfg, storage, discardLogger())

	var proposer struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	doJSON(t, handler, http.MethodPost, "/users", map[string]any{"wallet_address": "0x52908400098527886E0F7030069857D2E4169EE7"}, &proposer)

	var created eventEnvelope
	code := doJSON(t, handler, http.MethodPost, "/events", map[string]any{
		"title":          "Board games",
		"start":          "2024-06-01T18:00:00Z",
		"end":            "2024-06-01T21:00:00Z",
		"proposer_id":    proposer.User.ID,
		"gcal_requested": true,
	}, &created)
	if code != http.StatusCreated || created.Event.GCalEventID != "" {
		t.Fatalf("expected unlinked event, got %d %#v", code, created.Event)
	}

	if code := doJSON(t, handler, http.MethodPost, "/calendar/invites", map[string]any{"event_ids": []string{created.Event.ID}, "email": "a@example.com"}, nil); code != http.StatusInternalServerError {
		t.Fatalf("expected invites to fail without a calendar, got %d", code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/"+created.Event.Hash+"/ics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ics export: status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "SUMMARY:Board games") || !strings.Contains(body, "http://localhost:3000/rsvp/"+created.Event.Hash) {
		t.Fatalf("unexpected ics body:\n%s", body)
	}
}

func TestCredentialTokenStore(t *testing.T) {
	ctx := context.Background()
	storage := openTestStorage(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newCredentialTokenStore(storage.Credentials, "service", func() time.Time { return now })

	if _, err := store.LoadToken(ctx); err == nil {
		t.Fatalf("expected missing credential error")
	}

	expiry := now.Add(time.Hour)
	first := (&oauth2.Token{AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", Expiry: expiry}).
		WithExtra(map[string]any{"scope": gcal.CalendarEventsScope})
	if err := store.SaveToken(ctx, first); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := store.SaveToken(ctx, &oauth2.Token{AccessToken: "a2", TokenType: "Bearer", Expiry: expiry.Add(time.Hour)}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	loaded, err := store.LoadToken(ctx)
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if loaded.AccessToken != "a2" || loaded.RefreshToken != "r1" || !loaded.Expiry.Equal(expiry.Add(time.Hour)) {
		t.Fatalf("unexpected token: %#v", loaded)
	}

	stored, err := storage.Credentials.GetGoogleCredential(ctx, "service")
	if err != nil {
		t.Fatalf("GetGoogleCredential failed: %v", err)
	}
	if stored.Scope != gcal.CalendarEventsScope {
		t.Fatalf("expected scope to be kept, got %q", stored.Scope)
	}
}

func TestRepositoryAdapters_MapOptionalFields(t *testing.T) {
	ctx := context.Background()
	storage := openTestStorage(t)
	users := newUserRepositoryAdapter(storage.Users)
	events := newEventRepositoryAdapter(storage.Events)
	rsvps := newRsvpRepositoryAdapter(storage.Rsvps)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := users.CreateUser(ctx, applicationUser("u1", "", "Wally", now)); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	stored, err := storage.Users.GetUser(ctx, "u1")
	if err != nil || stored.Email != nil {
		t.Fatalf("expected empty email to be stored as NULL, got %#v %v", stored, err)
	}

	event := applicationEvent("e1", "u1", now)
	if _, err := events.CreateEvent(ctx, event); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	loaded, err := events.GetEventByHash(ctx, event.Hash)
	if err != nil {
		t.Fatalf("GetEventByHash failed: %v", err)
	}
	if loaded.Proposer == nil || loaded.Proposer.Nickname != "Wally" || loaded.GCalEventID != "" {
		t.Fatalf("unexpected event: %#v", loaded)
	}

	if _, err := rsvps.CreateRsvp(ctx, applicationRsvp("r1", "e1", "u1", now)); err != nil {
		t.Fatalf("CreateRsvp failed: %v", err)
	}
	list, err := rsvps.ListRsvpsForEvent(ctx, "e1")
	if err != nil || len(list) != 1 || list[0].Attendee == nil || list[0].Attendee.Nickname != "Wally" {
		t.Fatalf("unexpected rsvps: %#v %v", list, err)
	}

	if _, err := events.GetEvent(ctx, "missing"); err != persistence.ErrNotFound {
		t.Fatalf("expected persistence.ErrNotFound to pass through, got %v", err)
	}
}

func TestNewEventHash(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		hash := newEventHash()
		if len(hash) != hashLength || strings.Trim(hash, hashAlphabet) != "" {
			t.Fatalf("unexpected hash %q", hash)
		}
		if seen[hash] {
			t.Fatalf("duplicate hash %q", hash)
		}
		seen[hash] = true
	}
	if newID() == newID() {
		t.Fatalf("expected unique ids")
	}
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv(config.EnvSQLiteDSN, filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv(config.EnvConfigFile, "")

	var stdout, stderr bytes.Buffer
	app := newApp(strings.NewReader(""), &stdout, &stderr)
	if err := app.Run([]string{"eventrsvp", "migrate"}); err != nil {
		t.Fatalf("migrate failed: %v\n%s", err, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "applied 001") || !strings.Contains(out, "pending: 0") {
		t.Fatalf("unexpected migrate output:\n%s", out)
	}
}

func TestSlackCredentialCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv(config.EnvSQLiteDSN, dsn)
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv(config.EnvCredentialsSecret, "test-secret")

	var stdout, stderr bytes.Buffer
	app := newApp(strings.NewReader(""), &stdout, &stderr)
	err := app.Run([]string{"eventrsvp", "slack-credential", "--owner", "service", "--team-id", "T1", "--bot-token", "xoxb-1", "--channel-id", "C1"})
	if err != nil {
		t.Fatalf("slack-credential failed: %v\n%s", err, stderr.String())
	}

	cfg := config.Default()
	cfg.SQLiteDSN = dsn
	cfg.CredentialsSecret = "test-secret"
	storage, err := openStorage(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openStorage failed: %v", err)
	}
	defer storage.Close()

	credential, err := storage.Credentials.GetSlackCredential(context.Background(), "service")
	if err != nil {
		t.Fatalf("GetSlackCredential failed: %v", err)
	}
	if credential.BotToken != "xoxb-1" || credential.ChannelID != "C1" {
		t.Fatalf("unexpected credential: %#v", credential)
	}
}
