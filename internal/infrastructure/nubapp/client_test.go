package nubapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

const loginPage = `<html><body><form method="post">
<input type="text" name="_username">
<input type="hidden" name="_csrf_token" value="tok123">
</form></body></html>`

type fakeSite struct {
	t           *testing.T
	loginStatus int
	failSlots   int
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("POST /ajax/applications/bounds/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(f.t, body, "bounds")
		writeJSON(w, map[string]any{"applications": []map[string]string{
			{"slug": "zeta", "name": "Zeta", "address": "Z street"},
			{"slug": "kirol", "name": "Kirol Klub", "address": "K street"},
		}})
	})
	mux.HandleFunc("GET /popup/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "portal", Path: "/"})
		_, _ = io.WriteString(w, loginPage)
	})
	mux.HandleFunc("POST /popup/login_check", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		_, err := r.Cookie("PHPSESSID")
		assert.NoError(f.t, err)
		assert.Equal(f.t, "tok123", r.PostForm.Get("_csrf_token"))
		assert.Equal(f.t, "true", r.PostForm.Get("_force"))
		if f.loginStatus != 0 {
			w.WriteHeader(f.loginStatus)
			return
		}
		if r.PostForm.Get("_username") != "user@example.com" || r.PostForm.Get("_password") != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	})
	mux.HandleFunc("GET /ajax/application/{slug}/book/request", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("slug") != "kirol" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]string{"payload": "id_application=7&id_user=42&token=abc"})
	})
	mux.HandleFunc("GET /web/resources/login_from_social.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(f.t, "resasocial", q.Get("platform"))
		assert.Equal(f.t, "resasports", q.Get("network"))
		assert.Equal(f.t, "abc", q.Get("token"))
		if q.Get("id_user") != "42" {
			w.WriteHeader(http.StatusForbidden)
		}
	})
	mux.HandleFunc("POST /api/v4/activities/getActivities.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "42", r.PostForm.Get("id_user"))
		assert.Equal(f.t, "7", r.PostForm.Get("id_application"))
		writeJSON(w, map[string]any{"success": true, "data": map[string]any{"activities": []map[string]any{
			{"id_activity": 10, "name_activity": "Yoga", "id_category_activity": 3},
			{"id_activity": "11", "name_activity": "Pilates", "id_category_activity": "3"},
		}}})
	})
	mux.HandleFunc("POST /api/v4/activities/getActivitiesCalendar.php", func(w http.ResponseWriter, r *http.Request) {
		if f.failSlots > 0 {
			f.failSlots--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "3", r.PostForm.Get("id_category_activity"))
		assert.Equal(f.t, "20-01-2025", r.PostForm.Get("start_timestamp"))
		writeJSON(w, map[string]any{"data": map[string]any{"activities_calendar": []map[string]any{
			{"id_activity_calendar": 100, "id_activity": 10, "start_timestamp": "2025-01-20 18:00:00", "capacity": 20, "n_inscribed": 5},
			{"id_activity_calendar": 101, "id_activity": 10, "start_timestamp": "2025-01-20 19:00:00", "capacity": "20", "n_inscribed": "20", "booked": true},
			{"id_activity_calendar": 102, "id_activity": 11, "start_timestamp": "2025-01-20 18:00:00"},
			{"id_activity_calendar": 103, "id_activity": 10, "start_timestamp": "2025-01-21 18:00:00"},
		}}})
	})
	codes := map[string]int{"101": 5, "102": 6, "103": 28, "104": 99}
	mux.HandleFunc("POST /api/v4/activities/bookActivityCalendar.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "42", r.PostForm.Get("id_user"))
		id := r.PostForm.Get("id_activity_calendar")
		if code, ok := codes[id]; ok {
			writeJSON(w, map[string]any{"success": false, "error": code})
			return
		}
		writeJSON(w, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /api/v4/activities/leaveActivityCalendar.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		writeJSON(w, map[string]any{"success": r.PostForm.Get("id_activity_calendar") == "100"})
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeSite) {
	t.Helper()
	site := &fakeSite{t: t}
	srv := httptest.NewServer(site.handler())
	t.Cleanup(srv.Close)

	l := logrus.New()
	l.SetOutput(io.Discard)
	c, err := New(Options{SiteBaseURL: srv.URL, APIBaseURL: srv.URL + "/", Timeout: 5 * time.Second, Logger: logrus.NewEntry(l)})
	require.NoError(t, err)
	return c, site
}

var creds = booking.Credentials{Email: "user@example.com", Password: "pw", Centre: "kirol"}

func TestAuthenticate(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Authenticate(context.Background(), creds))
	assert.Equal(t, "42", c.UserID())
}

func TestAuthenticateRejected(t *testing.T) {
	c, _ := newTestClient(t)
	bad := creds
	bad.Password = "wrong"
	err := c.Authenticate(context.Background(), bad)
	assert.True(t, booking.IsAuthenticationError(err))
	assert.Empty(t, c.UserID())

	unknown := creds
	unknown.Centre = "nowhere"
	err = c.Authenticate(context.Background(), unknown)
	assert.True(t, booking.IsAuthenticationError(err))
	assert.Contains(t, err.Error(), "nowhere")

	err = c.Authenticate(context.Background(), booking.Credentials{Email: "x"})
	assert.True(t, booking.IsAuthenticationError(err))
}

func TestAuthenticateServerErrorIsTransient(t *testing.T) {
	c, site := newTestClient(t)
	site.loginStatus = http.StatusServiceUnavailable
	err := c.Authenticate(context.Background(), creds)
	assert.True(t, booking.IsTransientError(err))
	assert.False(t, booking.IsAuthenticationError(err))
}

func TestCallsBeforeLogin(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.ListActivities(context.Background())
	assert.ErrorIs(t, err, booking.ErrNoSession)
	assert.True(t, booking.IsTransientError(err))

	err = c.Book(context.Background(), booking.Slot{ID: "100"})
	assert.ErrorIs(t, err, booking.ErrNoSession)
}

func TestCentres(t *testing.T) {
	c, _ := newTestClient(t)
	centres, err := c.Centres(context.Background())
	require.NoError(t, err)
	require.Len(t, centres, 2)
	assert.Equal(t, Centre{Slug: "kirol", Name: "Kirol Klub", Address: "K street"}, centres[0])
}

func TestListActivitiesAndSlots(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Authenticate(context.Background(), creds))

	activities, err := c.ListActivities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []booking.Activity{
		{ID: "10", Name: "Yoga", CategoryID: "3"},
		{ID: "11", Name: "Pilates", CategoryID: "3"},
	}, activities)

	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	day := time.Date(2025, time.January, 20, 18, 0, 0, 0, loc)
	slots, err := c.ListSlots(context.Background(), activities[0], day)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, booking.Slot{ID: "100", ActivityID: "10", Start: day, Capacity: booking.CapacityAvailable}, slots[0])
	assert.True(t, slots[1].Booked)
	assert.Equal(t, booking.CapacityFull, slots[1].Capacity)
}

func TestListSlotsGatewayErrorIsTransient(t *testing.T) {
	c, site := newTestClient(t)
	require.NoError(t, c.Authenticate(context.Background(), creds))
	site.failSlots = 1

	_, err := c.ListSlots(context.Background(), booking.Activity{ID: "10", CategoryID: "3"}, time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC))
	assert.True(t, booking.IsTransientError(err))
}

func TestBookCodes(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Authenticate(context.Background(), creds))
	ctx := context.Background()

	assert.NoError(t, c.Book(ctx, booking.Slot{ID: "100"}))

	reason, ok := booking.RejectionReason(c.Book(ctx, booking.Slot{ID: "101"}))
	require.True(t, ok)
	assert.Equal(t, booking.RejectAlreadyBooked, reason)

	reason, ok = booking.RejectionReason(c.Book(ctx, booking.Slot{ID: "102"}))
	require.True(t, ok)
	assert.Equal(t, booking.RejectFull, reason)

	var notOpen booking.SlotNotOpenError
	assert.True(t, errors.As(c.Book(ctx, booking.Slot{ID: "103"}), &notOpen))

	err := c.Book(ctx, booking.Slot{ID: "104"})
	assert.True(t, booking.IsTransientError(err))
	assert.Contains(t, err.Error(), "99")
}

func TestCancel(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Authenticate(context.Background(), creds))

	assert.NoError(t, c.Cancel(context.Background(), booking.Slot{ID: "100"}))

	var ce booking.CancelError
	assert.True(t, errors.As(c.Cancel(context.Background(), booking.Slot{ID: "999"}), &ce))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{SiteBaseURL: "::", APIBaseURL: "https://x"})
	assert.Error(t, err)
}

func TestFlexDecoding(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexInt    `json:"c"`
		D flexInt    `json:"d"`
		E flexInt    `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": "x", "c": "7", "d": true, "e": null}`), &v))
	assert.Equal(t, flexString("12"), v.A)
	assert.Equal(t, flexString("x"), v.B)
	assert.Equal(t, flexInt(7), v.C)
	assert.Equal(t, flexInt(1), v.D)
	assert.Equal(t, flexInt(0), v.E)
}
