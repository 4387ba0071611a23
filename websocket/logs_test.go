package websocket

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hagall-spatial/models"
	"github.com/stretchr/testify/require"
)

type logRecorder struct {
	mutex   sync.Mutex
	entries []string
}

func recordLogs() *logRecorder {
	r := &logRecorder{}

	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.entries = append(r.entries, fmt.Sprint(e))
	})
	return r
}

// entry returns the first recorded entry that contains msg.
func (r *logRecorder) entry(msg string) (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, e := range r.entries {
		if strings.Contains(e, msg) {
			return e, true
		}
	}
	return "", false
}

func (r *logRecorder) waitEntry(t *testing.T, msg string) string {
	var entry string
	require.Eventually(t, func() bool {
		var ok bool
		entry, ok = r.entry(msg)
		return ok
	}, time.Second, time.Millisecond*10, "no %q log entry", msg)
	return entry
}

func TestHandlerWithLogsSpaceTags(t *testing.T) {
	recorder := recordLogs()
	spaces := newTestSpaces()
	space, ok := spaces.Get(1)
	require.True(t, ok)

	clientA, _, close := newTestingEnv(t, newTestHandlerWithSpaces(spaces))
	defer close()

	spaceIDTag := `"space_id":1`
	spaceUUIDTag := fmt.Sprintf(`"space_uuid":"%s"`, space.UUID)

	t.Run("connect", func(t *testing.T) {
		entry := recorder.waitEntry(t, "new client is connected")
		require.Contains(t, entry, spaceIDTag)
		require.Contains(t, entry, spaceUUIDTag)
		require.Contains(t, entry, `"user_agent":"ted"`)
	})

	t.Run("disconnect", func(t *testing.T) {
		clientA.Close()

		entry := recorder.waitEntry(t, "client disconnected")
		require.Contains(t, entry, spaceIDTag)
		require.Contains(t, entry, spaceUUIDTag)
	})
}

func TestHandlerWithLogsConnectFailure(t *testing.T) {
	recorder := recordLogs()

	_, _, close := newTestingEnv(t, newTestHandlerWithSpaces(&models.SpaceStore{}))
	defer close()

	entry := recorder.waitEntry(t, "client failed to connect to a space")
	require.Contains(t, entry, `"space_id":"1"`)
	require.NotContains(t, entry, "space_uuid")
}

func TestHandlerWithLogsSummary(t *testing.T) {
	recorder := recordLogs()

	h := HandlerWithLogs(&RealtimeHandler{clientID: "test-client"}, time.Hour).(*handlerWithLogs)
	defer h.Close()
	h.spaceID = 3
	h.spaceUUID = "space-uuid"

	t.Run("no summary without messages", func(t *testing.T) {
		h.logSummary()
		_, ok := recorder.entry("inbound message summary")
		require.False(t, ok)
	})

	t.Run("summary counts messages by type", func(t *testing.T) {
		h.incCounter("MSG_TYPE_PING_REQUEST")
		h.incCounter("MSG_TYPE_PING_REQUEST")
		h.incCounter("MSG_TYPE_DAGAZ_QUAD_SAMPLE")
		require.Equal(t, 2, h.counter["MSG_TYPE_PING_REQUEST"])

		h.logSummary()
		require.Empty(t, h.counter)

		entry, ok := recorder.entry("inbound message summary")
		require.True(t, ok)
		require.Contains(t, entry, `"MSG_TYPE_PING_REQUEST":2`)
		require.Contains(t, entry, `"MSG_TYPE_DAGAZ_QUAD_SAMPLE":1`)
		require.Contains(t, entry, `"space_id":3`)
		require.Contains(t, entry, `"space_uuid":"space-uuid"`)
		require.Contains(t, entry, fmt.Sprintf(`"%s":"test-client"`, logs.ClientIDTag))
	})
}

func TestHandlerWithLogsSummaryWorker(t *testing.T) {
	recorder := recordLogs()

	h := HandlerWithLogs(&RealtimeHandler{}, time.Millisecond).(*handlerWithLogs)
	defer h.Close()
	h.incCounter("MSG_TYPE_PING_REQUEST")

	entry := recorder.waitEntry(t, "inbound message summary")
	require.Contains(t, entry, `"MSG_TYPE_PING_REQUEST":1`)
}
