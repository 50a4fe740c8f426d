// Command healthcheck probes the bot's /healthz for container health checks.
// It exits non-zero unless the probe answers 200.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"time"
)

// probeURL turns HTTP_ADDR (":8080", "0.0.0.0:9000") into a local URL.
func probeURL(addr string) string {
	if addr == "" {
		addr = ":8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080/healthz"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz"
}

func check(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	return resp.StatusCode == http.StatusOK
}

func main() {
	client := &http.Client{Timeout: 3 * time.Second}
	if !check(context.Background(), client, probeURL(os.Getenv("HTTP_ADDR"))) {
		os.Exit(1)
	}
}
