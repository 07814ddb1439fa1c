package predictapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

func TestLookupStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/streams/lookup", r.URL.Path)
		if r.URL.Query().Get("id") == "missing" {
			http.Error(w, "no such stream", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"stream-` + r.URL.Query().Get("id") + `"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	id, err := c.LookupStream(context.Background(), "chess_master")
	require.NoError(t, err)
	assert.Equal(t, "stream-chess_master", id)

	_, err = c.LookupStream(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrResolution))
}

func TestLookupStreamEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).LookupStream(context.Background(), "x")
	require.ErrorIs(t, err, domain.ErrResolution)
}

func TestStreamStatusAcceptsLegacyField(t *testing.T) {
	body := `{"open":true,"streamId":"s-1"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/streams/s-1/challenge", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, time.Second)

	st, err := c.StreamStatus(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StreamStatus{Open: true, StreamID: "s-1"}, st)

	body = `{"hasActiveStream":false}`
	st, err = c.StreamStatus(context.Background(), "s-1")
	require.NoError(t, err)
	assert.False(t, st.Open)
	assert.Equal(t, "s-1", st.StreamID)
}

func TestSubmitPrediction(t *testing.T) {
	var got domain.PredictionSubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predictions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"predictionId":"p-1","amount":1,"odds":2.5,"tokenName":"CHZ"}}`))
	}))
	defer srv.Close()

	sub := domain.PredictionSubmission{ChallengeID: "c-1", UserID: "u-1", OptionID: "o-1", Amount: 1, TokenName: "CHZ"}
	resp, err := NewClient(srv.URL, time.Second).SubmitPrediction(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, sub, got)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "p-1", resp.Data.PredictionID)
}

func TestSubmitPredictionRejectedKeepsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"challenge closed"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, time.Second).SubmitPrediction(context.Background(), domain.PredictionSubmission{ChallengeID: "c"})
	require.ErrorIs(t, err, domain.ErrSubmission)
	assert.False(t, resp.Success)
	assert.Equal(t, "challenge closed", resp.Message)
}
