// Command healthcheck probes the service's health endpoint and exits 0/1,
// for use as a container HEALTHCHECK in images without curl.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"
)

const probeTimeout = 2 * time.Second

func main() {
	if !healthy(healthURL(os.Getenv("FLEETPANEL_LISTEN_ADDR"))) {
		os.Exit(1)
	}
}

func healthy(url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	client := &http.Client{Timeout: probeTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// healthURL maps the server's listen address to a probe URL. The service may
// bind 0.0.0.0 inside a container; the probe runs in the same container, so
// it always dials loopback.
func healthURL(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "http://127.0.0.1:8080/api/v1/health"
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/api/v1/health"
}
