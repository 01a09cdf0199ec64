package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pion/webrtc/v4"
)

// turnResponse is the body returned by a TURN provisioning endpoint. Older
// endpoints return a single host:port in "turn", newer ones a list of URIs.
type turnResponse struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	TURN     string   `json:"turn"`
	URIs     []string `json:"uris"`
}

// FetchTURN asks the provisioning endpoint at url for short-lived TURN
// credentials.
func FetchTURN(ctx context.Context, client *http.Client, url string) (webrtc.ICEServer, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return webrtc.ICEServer{}, fmt.Errorf("build turn request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return webrtc.ICEServer{}, fmt.Errorf("fetch turn server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return webrtc.ICEServer{}, fmt.Errorf("fetch turn server: unexpected status %s", resp.Status)
	}

	var body turnResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return webrtc.ICEServer{}, fmt.Errorf("decode turn response: %w", err)
	}

	urls := body.URIs
	if len(urls) == 0 && body.TURN != "" {
		urls = []string{body.TURN}
	}
	for i, u := range urls {
		if !strings.HasPrefix(u, "turn:") && !strings.HasPrefix(u, "turns:") {
			urls[i] = "turn:" + u
		}
	}
	if len(urls) == 0 {
		return webrtc.ICEServer{}, errors.New("turn response has no server")
	}
	if body.Username == "" || body.Password == "" {
		return webrtc.ICEServer{}, errors.New("turn response has no credentials")
	}

	return webrtc.ICEServer{URLs: urls, Username: body.Username, Credential: body.Password}, nil
}

// HasTURN reports whether any server in servers is a TURN relay.
func HasTURN(servers []webrtc.ICEServer) bool {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}
	return false
}
