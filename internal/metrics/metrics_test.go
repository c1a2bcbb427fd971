package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mtlprog/helpdesk/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.ErrChamadoNotFound, "not_found"},
		{domain.ErrTransferTI, "forbidden"},
		{fmt.Errorf("%w: chamado 1", domain.ErrChamadoTerminal), "conflict"},
		{domain.ErrInvalidSituacao, "invalid_input"},
		{errors.New("connection reset"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Result(tt.err), "err=%v", tt.err)
	}
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(chamadoOperations.WithLabelValues("transfer", "forbidden"))
	ObserveOperation("transfer", domain.ErrTransferTI)
	after := testutil.ToFloat64(chamadoOperations.WithLabelValues("transfer", "forbidden"))
	assert.Equal(t, before+1, after)
}

func TestIncNotificationFailure(t *testing.T) {
	before := testutil.ToFloat64(notificationFailures.WithLabelValues("kafka"))
	IncNotificationFailure("kafka")
	assert.Equal(t, before+1, testutil.ToFloat64(notificationFailures.WithLabelValues("kafka")))
}

func TestInstrument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	h := Instrument(mux)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "GET /things/{id}", "418"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/7", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "GET /things/{id}", "418")))
}

func TestWebsocketConnected(t *testing.T) {
	before := testutil.ToFloat64(websocketClients)
	done := WebsocketConnected()
	assert.Equal(t, before+1, testutil.ToFloat64(websocketClients))
	done()
	assert.Equal(t, before, testutil.ToFloat64(websocketClients))
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (r *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.hijacked = true
	return nil, nil, nil
}

func TestInstrument_Hijack(t *testing.T) {
	var hijackErr error
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		_, _, hijackErr = hj.Hijack()
	}))

	// ResponseRecorder cannot be hijacked.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Error(t, hijackErr)

	rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.NoError(t, hijackErr)
	assert.True(t, rec.hijacked)
}
