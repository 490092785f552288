package client

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/gitlab-org/correlated-http/client/testserver"
)

func transportHandlers(t *testing.T) []testserver.TestRequestHandler {
	return []testserver.TestRequestHandler{
		{
			Path: "/echo",
			Handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(CorrelationHeader, r.Header.Get(CorrelationHeader))
			},
		},
		{
			Path: "/missing",
			Handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(CorrelationHeader, r.Header.Get(CorrelationHeader))
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			Path: "/silent",
			Handler: func(w http.ResponseWriter, r *http.Request) {
				// no correlation header echoed back
			},
		},
	}
}

func transportClient(t *testing.T, opts ...TransportOption) (*http.Client, string) {
	t.Helper()

	url := testserver.StartHTTPServer(t, transportHandlers(t))

	return &http.Client{Transport: NewTransport(DefaultTransport(), opts...)}, url
}

func TestTransportInjectsCorrelationID(t *testing.T) {
	httpClient, url := transportClient(t)

	response, err := httpClient.Get(url + "/echo")
	require.NoError(t, err)
	defer response.Body.Close()

	id, ok := ExtractCorrelationID(response)
	require.True(t, ok)
	require.Regexp(t, correlationIDPattern, id)
}

func TestTransportKeepsCallerCorrelationID(t *testing.T) {
	httpClient, url := transportClient(t)

	request, err := http.NewRequest(http.MethodGet, url+"/echo", nil)
	require.NoError(t, err)
	request.Header.Set(CorrelationHeader, "caller-id")

	response, err := httpClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()

	id, ok := ExtractCorrelationID(response)
	require.True(t, ok)
	require.Equal(t, "caller-id", id)

	// the transport clones before augmenting
	require.Equal(t, "caller-id", request.Header.Get(CorrelationHeader))
}

func TestTransportReturnsSettledErrorResponses(t *testing.T) {
	httpClient, url := transportClient(t)

	response, err := httpClient.Get(url + "/missing")
	require.NoError(t, err)
	defer response.Body.Close()

	require.Equal(t, http.StatusNotFound, response.StatusCode)

	_, ok := ExtractCorrelationID(response)
	require.True(t, ok)
}

func TestTransportDiagnosticsDoNotAffectResponse(t *testing.T) {
	for _, path := range []string{"/echo", "/missing", "/silent"} {
		t.Run(path, func(t *testing.T) {
			plainClient, url := transportClient(t)
			diagClient := &http.Client{Transport: NewTransport(DefaultTransport(), WithDiagnostics())}

			plain, err := plainClient.Get(url + path)
			require.NoError(t, err)
			defer plain.Body.Close()

			diagnosed, err := diagClient.Get(url + path)
			require.NoError(t, err)
			defer diagnosed.Body.Close()

			require.Equal(t, plain.StatusCode, diagnosed.StatusCode)
		})
	}
}

func TestTransportDiagnosticsLine(t *testing.T) {
	url := testserver.StartHTTPServer(t, transportHandlers(t))

	testCases := []struct {
		desc        string
		path        string
		diagnostics bool
		wantLine    bool
	}{
		{desc: "enabled with recoverable id", path: "/echo", diagnostics: true, wantLine: true},
		{desc: "enabled without recoverable id", path: "/silent", diagnostics: true, wantLine: false},
		{desc: "disabled with recoverable id", path: "/echo", diagnostics: false, wantLine: false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			var logOutput bytes.Buffer
			oldLogger := slog.Default()
			slog.SetDefault(slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelDebug})))
			t.Cleanup(func() { slog.SetDefault(oldLogger) })

			var opts []TransportOption
			if tc.diagnostics {
				opts = append(opts, WithDiagnostics())
			}
			httpClient := &http.Client{Transport: NewTransport(DefaultTransport(), opts...)}

			response, err := httpClient.Get(url + tc.path)
			require.NoError(t, err)
			defer response.Body.Close()

			if !tc.wantLine {
				require.NotContains(t, logOutput.String(), "[HTTP]")
				return
			}

			id, ok := ExtractCorrelationID(response)
			require.True(t, ok)

			line := fmt.Sprintf("[HTTP] %s %s%s - Correlation-Id: %s", http.MethodGet, url, tc.path, id)
			require.Contains(t, logOutput.String(), line)
			require.Contains(t, logOutput.String(), "level=DEBUG")
			require.Equal(t, 1, strings.Count(logOutput.String(), "[HTTP]"), "exactly one diagnostic line per call")
		})
	}
}

func TestTransportFailure(t *testing.T) {
	httpClient := &http.Client{Transport: NewTransport(DefaultTransport())}

	_, err := httpClient.Get("http://127.0.0.1:1/echo")
	require.Error(t, err)
}
