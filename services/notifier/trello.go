package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type trelloCard struct {
	ListID      string
	Name        string
	Description string
}

func (c trelloCard) params(key, token string) url.Values {
	params := url.Values{}
	params.Set("idList", c.ListID)
	params.Set("name", c.Name)
	params.Set("desc", c.Description)
	params.Set("pos", "top")
	params.Set("key", key)
	params.Set("token", token)
	return params
}

// loggable is the payload as stored on the integration log, credentials masked.
func (c trelloCard) loggable() map[string]any {
	return map[string]any{
		"idList": c.ListID,
		"name":   c.Name,
		"desc":   c.Description,
		"pos":    "top",
		"key":    "***",
		"token":  "***",
	}
}

type trelloClient struct {
	baseURL string
	http    *http.Client
}

func newTrelloClient(baseURL string) *trelloClient {
	return &trelloClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: trelloTimeout},
	}
}

func (c *trelloClient) CreateCard(ctx context.Context, key, token string, card trelloCard) (int, map[string]any, error) {
	endpoint := fmt.Sprintf("%s/1/cards?%s", c.baseURL, card.params(key, token).Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return noResponseCode, nil, errors.New(redact(err.Error(), key, token))
	}
	return doJSON(c.http, req, "trello", key, token)
}

// buildCard names the card after the document type and lists the extracted
// fields in key order.
func buildCard(listID, subject string, document map[string]any) trelloCard {
	documentType := "Extracted Data"
	if value, ok := document["document_type"].(string); ok && value != "" {
		documentType = value
	}

	keys := make([]string, 0, len(document))
	for key := range document {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var desc strings.Builder
	for _, key := range keys {
		value := document[key]
		if value == nil {
			value = "-"
		}
		fmt.Fprintf(&desc, "**%s:** %v\n", key, value)
	}

	return trelloCard{
		ListID:      listID,
		Name:        fmt.Sprintf("[%s] %s", documentType, subject),
		Description: strings.TrimSuffix(desc.String(), "\n"),
	}
}
