package platform

import (
	"context"
	"fmt"
	"net/url"
)

type facebookAdapter struct {
	api     *apiClient
	baseURL string
}

func newFacebookAdapter(api *apiClient, baseURL string) Adapter {
	return &facebookAdapter{api: api, baseURL: baseURL}
}

func (f *facebookAdapter) Platform() Platform { return Facebook }

// Publish posts to the page named by cred.AccountID. A post with media is
// published as a photo carrying the text as its caption.
func (f *facebookAdapter) Publish(ctx context.Context, cred Credential, pub Publication) (*Result, error) {
	if cred.AccountID == "" {
		return nil, fmt.Errorf("facebook page id is missing")
	}

	form := url.Values{}
	form.Set("access_token", cred.AccessToken)

	endpoint := fmt.Sprintf("%s/%s/feed", f.baseURL, url.PathEscape(cred.AccountID))
	if len(pub.MediaURLs) > 0 {
		endpoint = fmt.Sprintf("%s/%s/photos", f.baseURL, url.PathEscape(cred.AccountID))
		form.Set("url", pub.MediaURLs[0])
		form.Set("caption", pub.Text)
	} else {
		form.Set("message", pub.Text)
	}

	id, err := graphPost(ctx, f.api, endpoint, form)
	if err != nil {
		return nil, err
	}
	return &Result{PostID: id}, nil
}
