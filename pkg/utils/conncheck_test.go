package utils

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestExtractFromNatsURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "with port", url: "nats://localhost:4223", want: "localhost:4223"},
		{name: "default port", url: "nats://nats.example.com", want: "nats.example.com:4222"},
		{name: "with credentials", url: "nats://user:pw@nats:4222", want: "nats:4222"},
		{name: "tls", url: "tls://nats/", want: "nats:4222"},
		{name: "no nats url", url: "http://localhost", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ExtractFromNatsURL(tt.url), tt.want)
		})
	}
}

func TestWaitForTCP(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	addr := lis.Addr().String()
	assert.NilError(t, WaitForTCP(context.Background(), addr, time.Second))

	lis.Close()
	assert.ErrorContains(t,
		WaitForTCP(context.Background(), addr, 300*time.Millisecond), "could not be reached")
}

func TestWaitForHTTPResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	url := srv.URL
	assert.NilError(t, WaitForHTTPResponse(context.Background(), url, time.Second),
		"any response counts")

	srv.Close()
	assert.ErrorContains(t,
		WaitForHTTPResponse(context.Background(), url, 300*time.Millisecond), "could not be reached")
}
