package applovin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/source"
)

type recorderStub struct {
	urls map[int64]string
	err  error
}

func (r *recorderStub) UpdateRequestURL(_ context.Context, taskID int64, url string) error {
	if r.err != nil {
		return r.err
	}
	if r.urls == nil {
		r.urls = make(map[int64]string)
	}
	r.urls[taskID] = url
	return nil
}

func TestAdapter_BuildURL(t *testing.T) {
	a := NewAdapter(Config{}, nil)

	got := a.BuildURL("k+y", "2024-01-01")

	assert.Equal(t, "https://r.applovin.com/report?api_key=k%2By"+
		"&columns=day%2Chour%2Cimpressions%2Cclicks%2Cctr%2Crevenue%2Cecpm%2Ccountry%2Cad_type%2Csize"+
		"%2Cdevice_type%2Cplatform%2Capplication%2Cpackage_name%2Cplacement%2Capplication_is_hidden%2Czone%2Czone_id"+
		"&format=json&start=2024-01-01&end=2024-01-01", got)
}

func TestAdapter_FetchReport_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("end"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(`{"results":"[]"}`))
	}))
	defer srv.Close()

	rec := &recorderStub{}
	a := NewAdapter(Config{Endpoint: srv.URL, Timeout: time.Second}, rec)

	body, err := a.FetchReport(context.Background(), source.ReportRequest{TaskID: 7, AppID: "sdk", APIKey: "secret", Day: "2024-01-01"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":"[]"}`, string(body))
	assert.Equal(t, a.BuildURL("secret", "2024-01-01"), rec.urls[7])
}

func TestAdapter_FetchReport_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantMsg: "request report response statusCode:503",
		},
		{
			name: "empty entity",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantMsg: "request report response entity is null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a := NewAdapter(Config{Endpoint: srv.URL, Timeout: time.Second}, nil)
			_, err := a.FetchReport(context.Background(), source.ReportRequest{TaskID: 1, APIKey: "k", Day: "2024-01-01"})

			require.Error(t, err)
			assert.Equal(t, domain.KindTransportFailed, domain.KindOf(err))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestAdapter_FetchReport_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	a := NewAdapter(Config{Endpoint: endpoint, Timeout: time.Second}, nil)
	_, err := a.FetchReport(context.Background(), source.ReportRequest{TaskID: 1, APIKey: "k", Day: "2024-01-01"})

	require.Error(t, err)
	assert.Equal(t, domain.KindTransportFailed, domain.KindOf(err))
	assert.Contains(t, err.Error(), "downJsonData error")
}

func TestAdapter_FetchReport_RecorderFailureStopsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	a := NewAdapter(Config{Endpoint: srv.URL}, &recorderStub{err: errors.New("db down")})
	_, err := a.FetchReport(context.Background(), source.ReportRequest{TaskID: 1, APIKey: "k", Day: "2024-01-01"})

	require.Error(t, err)
	assert.Equal(t, domain.KindStoreFailed, domain.KindOf(err))
	assert.False(t, called)
}
