package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/l10ncheck/internal/report"
)

func dialEvents(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.events.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestEventStream(t *testing.T) {
	s, _ := setupTestServer(t, false)
	conn := dialEvents(t, s)

	s.PublishResult(report.Result{Locale: "fr", Passed: false, Kind: report.KindMismatch, Error: "title mismatch for fr"})
	ev := readEvent(t, conn)
	assert.Equal(t, EventCase, ev.Type)
	require.NotNil(t, ev.Result)
	assert.Equal(t, "fr", ev.Result.Locale)
	assert.Equal(t, report.KindMismatch, ev.Result.Kind)
	assert.Nil(t, ev.Report)

	rep := sampleReport()
	s.SetLatest(rep)
	ev = readEvent(t, conn)
	assert.Equal(t, EventRun, ev.Type)
	require.NotNil(t, ev.Report)
	assert.Equal(t, rep.RunID, ev.Report.RunID)
}

func TestEventStreamClosedOnShutdown(t *testing.T) {
	s, _ := setupTestServer(t, false)
	conn := dialEvents(t, s)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, 0, s.events.count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestEventStreamClientLeaves(t *testing.T) {
	s, _ := setupTestServer(t, false)
	conn := dialEvents(t, s)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	require.Eventually(t, func() bool { return s.events.count() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Publishing with nobody listening is a no-op.
	s.PublishResult(report.Result{Locale: "en", Passed: true})
}
