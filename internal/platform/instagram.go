package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const instagramMaxCarouselItems = 10

type instagramAdapter struct {
	api     *apiClient
	baseURL string
}

func newInstagramAdapter(api *apiClient, baseURL string) Adapter {
	return &instagramAdapter{api: api, baseURL: baseURL}
}

func (ig *instagramAdapter) Platform() Platform { return Instagram }

// Publish creates a media container (a carousel when there is more than one
// image) and then publishes it. Text-only posts are not supported.
func (ig *instagramAdapter) Publish(ctx context.Context, cred Credential, pub Publication) (*Result, error) {
	if len(pub.MediaURLs) == 0 {
		return nil, ErrRequiresMedia
	}
	if cred.AccountID == "" {
		return nil, fmt.Errorf("instagram account id is missing")
	}

	var (
		containerID string
		err         error
	)
	if len(pub.MediaURLs) == 1 {
		containerID, err = ig.createContainer(ctx, cred, url.Values{
			"image_url": {pub.MediaURLs[0]},
			"caption":   {pub.Text},
		})
	} else {
		containerID, err = ig.createCarousel(ctx, cred, pub)
	}
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {cred.AccessToken},
	}
	id, err := graphPost(ctx, ig.api, ig.endpoint(cred, "media_publish"), form)
	if err != nil {
		return nil, fmt.Errorf("error publishing media: %w", err)
	}

	return &Result{PostID: id}, nil
}

func (ig *instagramAdapter) createCarousel(ctx context.Context, cred Credential, pub Publication) (string, error) {
	urls := pub.MediaURLs
	if len(urls) > instagramMaxCarouselItems {
		urls = urls[:instagramMaxCarouselItems]
	}

	children := make([]string, 0, len(urls))
	for _, u := range urls {
		id, err := ig.createContainer(ctx, cred, url.Values{
			"image_url":        {u},
			"is_carousel_item": {"true"},
		})
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}

	return ig.createContainer(ctx, cred, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {pub.Text},
	})
}

func (ig *instagramAdapter) createContainer(ctx context.Context, cred Credential, form url.Values) (string, error) {
	form.Set("access_token", cred.AccessToken)
	id, err := graphPost(ctx, ig.api, ig.endpoint(cred, "media"), form)
	if err != nil {
		return "", fmt.Errorf("error creating media container: %w", err)
	}
	return id, nil
}

func (ig *instagramAdapter) endpoint(cred Credential, edge string) string {
	return fmt.Sprintf("%s/%s/%s", ig.baseURL, url.PathEscape(cred.AccountID), edge)
}
