package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const twitterMaxLength = 280

type twitterAdapter struct {
	api     *apiClient
	baseURL string
}

func newTwitterAdapter(api *apiClient, baseURL string) Adapter {
	return &twitterAdapter{api: api, baseURL: baseURL}
}

func (t *twitterAdapter) Platform() Platform { return Twitter }

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type twitterErrorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (t *twitterAdapter) Publish(ctx context.Context, cred Credential, pub Publication) (*Result, error) {
	if n := utf8.RuneCountInString(pub.Text); n > twitterMaxLength {
		return nil, fmt.Errorf("%w: twitter allows %d characters, got %d", ErrTextTooLong, twitterMaxLength, n)
	}

	payload, err := json.Marshal(tweetRequest{Text: pub.Text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, body, err := t.api.do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, t.api.apiError(resp.StatusCode, twitterErrorMessage(body), body)
	}

	var result tweetResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if result.Data.ID == "" {
		return nil, fmt.Errorf("no tweet ID returned from Twitter")
	}

	return &Result{PostID: result.Data.ID}, nil
}

func twitterErrorMessage(body []byte) string {
	var e twitterErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Errors) > 0 {
		msgs := make([]string, 0, len(e.Errors))
		for _, m := range e.Errors {
			msgs = append(msgs, m.Message)
		}
		return strings.Join(msgs, "; ")
	}
	return e.Title
}
