package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/google"

	"agentgw/internal/logging"
)

const remoteConfigScope = "https://www.googleapis.com/auth/firebase.remoteconfig"

// remoteClient fetches the PromptConfig JSON string from Firebase Remote
// Config, tracking the last-seen ETag for conditional GETs.
type remoteClient struct {
	httpc     *http.Client
	projectID string
	saKeyPath string

	mu   sync.Mutex
	etag string
}

// NewRemoteClient builds a remote prompt fetcher bound to a Firebase project
// and a service-account key path (OAuth2 JWT flow, scope
// firebase.remoteconfig).
func NewRemoteClient(projectID, saKeyPath string) *remoteClient {
	return &remoteClient{
		httpc:     &http.Client{Timeout: 15 * time.Second},
		projectID: projectID,
		saKeyPath: saKeyPath,
	}
}

func (c *remoteClient) tokenSource(ctx context.Context) (*http.Client, error) {
	keyData, err := os.ReadFile(c.saKeyPath)
	if err != nil {
		return nil, fmt.Errorf("prompts: read service account key: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(keyData, remoteConfigScope)
	if err != nil {
		return nil, fmt.Errorf("prompts: parse service account key: %w", err)
	}
	return jwtCfg.Client(ctx), nil
}

// fetch performs the conditional GET. Returns "" (no error) on a 304. On a
// 200, it extracts parameters.prompts.defaultValue.value and returns it as
// the raw PromptConfig JSON string.
func (c *remoteClient) fetch() (string, error) {
	log := logging.Component("prompts")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := c.tokenSource(ctx)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("https://firebaseremoteconfig.googleapis.com/v1/projects/%s/remoteConfig", c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	etag := c.etag
	c.mu.Unlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("prompts: remote fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		log.Debug().Msg("remote_prompts_not_modified")
		return "", nil
	case http.StatusOK:
		if newEtag := resp.Header.Get("ETag"); newEtag != "" {
			c.mu.Lock()
			c.etag = newEtag
			c.mu.Unlock()
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("prompts: read remote body: %w", err)
		}
		var root struct {
			Parameters struct {
				Prompts struct {
					DefaultValue struct {
						Value string `json:"value"`
					} `json:"defaultValue"`
				} `json:"prompts"`
			} `json:"parameters"`
		}
		if err := json.Unmarshal(body, &root); err != nil {
			return "", fmt.Errorf("prompts: decode remote config: %w", err)
		}
		value := root.Parameters.Prompts.DefaultValue.Value
		if value == "" {
			return "", fmt.Errorf("prompts: missing parameters.prompts.defaultValue.value in remote config")
		}
		return value, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("prompts: remote config status %d: %s", resp.StatusCode, string(body))
	}
}
