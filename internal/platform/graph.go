package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// graphErrorResponse is the error envelope shared by the Facebook and
// Instagram Graph APIs.
type graphErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		ErrorUserMsg string `json:"error_user_msg"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

type graphIDResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// graphPost sends a form-encoded POST and returns the created object's id.
func graphPost(ctx context.Context, api *apiClient, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body, err := api.do(req)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", api.apiError(resp.StatusCode, graphErrorMessage(body), body)
	}

	var result graphIDResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", fmt.Errorf("no ID returned from %s", api.platform)
	}
	return result.ID, nil
}

func graphErrorMessage(body []byte) string {
	var e graphErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Error.ErrorUserMsg != "" {
		return e.Error.ErrorUserMsg
	}
	return e.Error.Message
}
