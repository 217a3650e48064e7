package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ConversationsPath is the HTTP endpoint serving the initial conversation list.
const ConversationsPath = "/api/conversations"

// FetchConversations loads the conversation list from baseURL.
// A nil client uses http.DefaultClient.
func FetchConversations(ctx context.Context, client *http.Client, baseURL string) ([]Conversation, error) {
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimRight(baseURL, "/") + ConversationsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch conversations: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var convs []Conversation
	if err := json.NewDecoder(resp.Body).Decode(&convs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return convs, nil
}
