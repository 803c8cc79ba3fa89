// Copyright (c) 2025 BVK Chaitanya

package cmdutil

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"time"
)

type ClientFlags struct {
	port        int
	Host        string
	APIPath     string
	HTTPTimeout time.Duration
}

func (cf *ClientFlags) SetFlags(fset *flag.FlagSet) {
	fset.IntVar(&cf.port, "connect-port", 0, "TCP port number for the api endpoint (default=9300 or SNIPEBOT_SERVER_PORT value)")
	fset.StringVar(&cf.Host, "connect-host", "127.0.0.1", "Hostname or IP address for the api endpoint")
	fset.StringVar(&cf.APIPath, "api-path", "/", "base path to the api handler")
	fset.DurationVar(&cf.HTTPTimeout, "http-timeout", 30*time.Second, "http client timeout")
}

func (cf *ClientFlags) Port() int {
	if cf.port != 0 {
		return cf.port
	}
	if v := os.Getenv("SNIPEBOT_SERVER_PORT"); len(v) != 0 {
		if port, err := strconv.ParseInt(v, 10, 16); err == nil {
			return int(port)
		}
	}
	return 9300
}

func (cf *ClientFlags) AddressURL() *url.URL {
	return &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cf.Host, fmt.Sprintf("%d", cf.Port())),
		Path:   cf.APIPath,
	}
}

func (cf *ClientFlags) HttpClient() *http.Client {
	return &http.Client{
		Timeout: cf.HTTPTimeout,
	}
}

// Get fetches a server endpoint and returns the raw response body.
func (cf *ClientFlags) Get(ctx context.Context, subpath string, values url.Values) ([]byte, error) {
	return cf.do(ctx, http.MethodGet, subpath, values)
}

// Post invokes a server action endpoint and returns the raw response body.
func (cf *ClientFlags) Post(ctx context.Context, subpath string, values url.Values) ([]byte, error) {
	return cf.do(ctx, http.MethodPost, subpath, values)
}

func (cf *ClientFlags) do(ctx context.Context, method, subpath string, values url.Values) ([]byte, error) {
	addrURL := cf.AddressURL()
	addrURL.Path = path.Join(addrURL.Path, subpath)
	if values != nil {
		addrURL.RawQuery = values.Encode()
	}
	r, err := http.NewRequestWithContext(ctx, method, addrURL.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := cf.HttpClient().Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status code %d: %s", resp.StatusCode, data)
	}
	return data, nil
}
