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

const (
	linkedInMaxLength     = 3000
	linkedInRestliVersion = "2.0.0"
	linkedInVersion       = "202401"
)

type linkedInAdapter struct {
	api     *apiClient
	baseURL string
}

func newLinkedInAdapter(api *apiClient, baseURL string) Adapter {
	return &linkedInAdapter{api: api, baseURL: baseURL}
}

func (l *linkedInAdapter) Platform() Platform { return LinkedIn }

type linkedInPostRequest struct {
	Author                    string               `json:"author"`
	Commentary                string               `json:"commentary"`
	Visibility                string               `json:"visibility"`
	Distribution              linkedInDistribution `json:"distribution"`
	LifecycleState            string               `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool                 `json:"isReshareDisabledByAuthor"`
}

type linkedInDistribution struct {
	FeedDistribution               string `json:"feedDistribution"`
	TargetEntities                 []any  `json:"targetEntities"`
	ThirdPartyDistributionChannels []any  `json:"thirdPartyDistributionChannels"`
}

type linkedInUserInfo struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

type linkedInErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (l *linkedInAdapter) Publish(ctx context.Context, cred Credential, pub Publication) (*Result, error) {
	if n := utf8.RuneCountInString(pub.Text); n > linkedInMaxLength {
		return nil, fmt.Errorf("%w: linkedin allows %d characters, got %d", ErrTextTooLong, linkedInMaxLength, n)
	}

	memberID := cred.AccountID
	if memberID == "" {
		info, err := l.userInfo(ctx, cred.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		memberID = info.Sub
	}

	author := memberID
	if !strings.HasPrefix(author, "urn:li:") {
		author = "urn:li:person:" + memberID
	}

	postReq := linkedInPostRequest{
		Author:     author,
		Commentary: pub.Text,
		Visibility: "PUBLIC",
		Distribution: linkedInDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []any{},
			ThirdPartyDistributionChannels: []any{},
		},
		LifecycleState: "PUBLISHED",
	}

	payload, err := json.Marshal(postReq)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := l.newRequest(ctx, http.MethodPost, "/v2/posts", cred.AccessToken, payload)
	if err != nil {
		return nil, err
	}

	resp, body, err := l.api.do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, l.api.apiError(resp.StatusCode, linkedInErrorMessage(body), body)
	}

	postURN := resp.Header.Get("x-restli-id")
	if postURN == "" {
		postURN = resp.Header.Get("Location")
	}
	if postURN == "" {
		return nil, fmt.Errorf("no post URN returned from LinkedIn")
	}

	return &Result{PostID: postURN}, nil
}

func (l *linkedInAdapter) userInfo(ctx context.Context, accessToken string) (*linkedInUserInfo, error) {
	req, err := l.newRequest(ctx, http.MethodGet, "/v2/userinfo", accessToken, nil)
	if err != nil {
		return nil, err
	}

	resp, body, err := l.api.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, l.api.apiError(resp.StatusCode, linkedInErrorMessage(body), body)
	}

	var info linkedInUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("LinkedIn profile has no member id")
	}
	return &info, nil
}

func (l *linkedInAdapter) newRequest(ctx context.Context, method, path, accessToken string, payload []byte) (*http.Request, error) {
	var req *http.Request
	var err error
	if payload != nil {
		req, err = http.NewRequestWithContext(ctx, method, l.baseURL+path, bytes.NewReader(payload))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, l.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Restli-Protocol-Version", linkedInRestliVersion)
	req.Header.Set("LinkedIn-Version", linkedInVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func linkedInErrorMessage(body []byte) string {
	var e linkedInErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Message
}
