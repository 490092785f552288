package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	socketBaseURL             = "http://unix"
	unixSocketProtocol        = "http+unix://"
	httpProtocol              = "http://"
	httpsProtocol             = "https://"
	defaultReadTimeoutSeconds = 300
	defaultRetryWaitMin       = time.Second
	defaultRetryWaitMax       = 15 * time.Second
	defaultRetryMax           = 2
)

// ErrCafileNotFound indicates the specified CA file was not found.
var ErrCafileNotFound = errors.New("cafile not found")

// HTTPClient provides an HTTP client that talks to the configured endpoint
// over TCP, TLS or a unix socket, with every request passing through the
// correlation transport.
type HTTPClient struct {
	HTTPClient    *http.Client
	RetryableHTTP *retryablehttp.Client
	Host          string
}

type httpClientCfg struct {
	keyPath, certPath string
	caFile, caPath    string

	retryWaitMin time.Duration
	retryWaitMax time.Duration
	retryMax     int

	transportOpts []TransportOption
}

func (hcc httpClientCfg) HaveCertAndKey() bool { return hcc.keyPath != "" && hcc.certPath != "" }

// HTTPClientOpt provides options for configuring an HTTPClient.
type HTTPClientOpt func(*httpClientCfg)

// WithClientCert will configure the HTTPClient to provide client certificates
// when connecting to a server.
func WithClientCert(certPath, keyPath string) HTTPClientOpt {
	return func(hcc *httpClientCfg) {
		hcc.keyPath = keyPath
		hcc.certPath = certPath
	}
}

// WithHTTPRetryOpts configures the retrying HTTP client used for requests.
func WithHTTPRetryOpts(waitMin, waitMax time.Duration, maxAttempts int) HTTPClientOpt {
	return func(hcc *httpClientCfg) {
		hcc.retryWaitMin = waitMin
		hcc.retryWaitMax = waitMax
		hcc.retryMax = maxAttempts
	}
}

// WithTransportOptions passes options through to the correlation transport,
// such as enabling development-mode diagnostics.
func WithTransportOptions(opts ...TransportOption) HTTPClientOpt {
	return func(hcc *httpClientCfg) {
		hcc.transportOpts = append(hcc.transportOpts, opts...)
	}
}

func validateCaFile(filename string) error {
	if filename == "" {
		return nil
	}

	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			return ErrCafileNotFound
		}

		return err
	}

	return nil
}

// NewHTTPClientWithOpts builds an HTTP client for the given URL using the
// provided options. The scheme of the URL selects the underlying transport:
// http://, https:// or http+unix://.
func NewHTTPClientWithOpts(serverURL, relativeURLRoot, caFile, caPath string, selfSignedCert bool, readTimeoutSeconds uint64, opts []HTTPClientOpt) (*HTTPClient, error) {
	hcc := &httpClientCfg{
		caFile:       caFile,
		caPath:       caPath,
		retryWaitMin: defaultRetryWaitMin,
		retryWaitMax: defaultRetryWaitMax,
		retryMax:     defaultRetryMax,
	}

	for _, opt := range opts {
		opt(hcc)
	}

	var base *http.Transport
	var host string
	var err error
	if strings.HasPrefix(serverURL, unixSocketProtocol) {
		base, host = buildSocketTransport(serverURL, relativeURLRoot)
	} else if strings.HasPrefix(serverURL, httpProtocol) {
		base, host = buildHTTPTransport(serverURL)
	} else if strings.HasPrefix(serverURL, httpsProtocol) {
		if err = validateCaFile(caFile); err != nil {
			return nil, err
		}

		base, host, err = buildHTTPSTransport(*hcc, selfSignedCert, serverURL)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, errors.New("unknown URL scheme")
	}

	rt := NewTransport(base, hcc.transportOpts...)
	timeout := readTimeout(readTimeoutSeconds)

	c := &http.Client{
		Transport: rt,
		Timeout:   timeout,
	}

	client := &HTTPClient{HTTPClient: c, RetryableHTTP: buildRetryableHTTPClient(rt, timeout, *hcc), Host: host}

	return client, nil
}

func buildRetryableHTTPClient(rt http.RoundTripper, timeout time.Duration, hcc httpClientCfg) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryWaitMin = hcc.retryWaitMin
	client.RetryWaitMax = hcc.retryWaitMax
	client.RetryMax = hcc.retryMax
	// a response that exhausted its retries is still a settled response and
	// belongs to the caller
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = nil
	client.HTTPClient.Transport = rt
	client.HTTPClient.Timeout = timeout

	return client
}

func buildSocketTransport(serverURL, relativeURLRoot string) (*http.Transport, string) {
	socketPath := strings.TrimPrefix(serverURL, unixSocketProtocol)

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			dialer := net.Dialer{}
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}

	host := socketBaseURL
	relativeURLRoot = strings.Trim(relativeURLRoot, "/")
	if relativeURLRoot != "" {
		host = host + "/" + relativeURLRoot
	}

	return transport, host
}

func buildHTTPSTransport(hcc httpClientCfg, selfSignedCert bool, serverURL string) (*http.Transport, string, error) {
	certPool, err := x509.SystemCertPool()
	if err != nil {
		certPool = x509.NewCertPool()
	}

	if hcc.caFile != "" {
		addCertToPool(certPool, hcc.caFile)
	}

	if hcc.caPath != "" {
		fis, _ := os.ReadDir(hcc.caPath)
		for _, fi := range fis {
			if fi.IsDir() {
				continue
			}

			addCertToPool(certPool, filepath.Join(hcc.caPath, fi.Name()))
		}
	}

	tlsConfig := &tls.Config{
		RootCAs:            certPool,
		InsecureSkipVerify: selfSignedCert, //nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}

	if hcc.HaveCertAndKey() {
		cert, err := tls.LoadX509KeyPair(hcc.certPath, hcc.keyPath)
		if err != nil {
			return nil, "", err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	transport := &http.Transport{TLSClientConfig: tlsConfig}

	return transport, serverURL, nil
}

func addCertToPool(certPool *x509.CertPool, fileName string) {
	cert, err := os.ReadFile(filepath.Clean(fileName))
	if err == nil {
		certPool.AppendCertsFromPEM(cert)
	}
}

func buildHTTPTransport(serverURL string) (*http.Transport, string) {
	return &http.Transport{}, serverURL
}

func readTimeout(timeoutSeconds uint64) time.Duration {
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultReadTimeoutSeconds
	}

	return time.Duration(timeoutSeconds) * time.Second
}
