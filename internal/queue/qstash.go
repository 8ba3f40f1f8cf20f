package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/pkg/logger"
	"github.com/maheshrc27/postflow/pkg/ratelimit"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/rs/zerolog"
)

const DefaultQStashURL = "https://qstash.upstash.io"

// NonRetryableHeader on a callback response tells QStash not to redeliver.
const NonRetryableHeader = "Upstash-NonRetryable-Error"

type QStashOptions struct {
	BaseURL     string
	Token       string
	CallbackURL string
	Retries     int
	Timeout     time.Duration
	Limiter     *ratelimit.MultiLimiter
}

type QStashPublisher struct {
	baseURL     string
	token       string
	callbackURL string
	retries     int
	http        *http.Client
	limiter     *ratelimit.MultiLimiter
	log         zerolog.Logger
}

func NewQStashPublisher(opts QStashOptions) *QStashPublisher {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultQStashURL
	}
	return &QStashPublisher{
		baseURL:     baseURL,
		token:       opts.Token,
		callbackURL: opts.CallbackURL,
		retries:     opts.Retries,
		http:        utils.NewHTTPClient(opts.Timeout),
		limiter:     opts.Limiter,
		log:         logger.Component("qstash"),
	}
}

type qstashPublishResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func (q *QStashPublisher) configured() bool {
	return q.token != "" && q.callbackURL != ""
}

func (q *QStashPublisher) Publish(ctx context.Context, msg DispatchMessage, delay time.Duration) (string, error) {
	if !q.configured() {
		return "", ErrQueueNotConfigured
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/v2/publish/"+q.callbackURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+q.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Retries", strconv.Itoa(q.retries))
	if seconds := delaySeconds(delay); seconds > 0 {
		req.Header.Set("Upstash-Delay", fmt.Sprintf("%ds", seconds))
	}

	resp, body, err := q.do(req)
	if err != nil {
		return "", err
	}

	var result qstashPublishResponse
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		msg := result.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", fmt.Errorf("qstash rejected publish (status %d): %s", resp.StatusCode, msg)
	}
	if result.MessageID == "" {
		return "", fmt.Errorf("qstash returned no messageId")
	}

	q.log.Debug().
		Int64("post_id", msg.PostID).
		Int64("schedule_id", msg.ScheduleID).
		Str("platform", msg.Platform).
		Str("message_id", result.MessageID).
		Dur("delay", delay).
		Msg("dispatch registered")

	return result.MessageID, nil
}

func (q *QStashPublisher) Cancel(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	if q.token == "" {
		return ErrQueueNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, q.baseURL+"/v2/messages/"+messageID, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+q.token)

	resp, body, err := q.do(req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return fmt.Errorf("qstash rejected cancel (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (q *QStashPublisher) do(req *http.Request) (*http.Response, []byte, error) {
	if err := q.limiter.Wait(req.Context(), ratelimit.LimiterQStash); err != nil {
		return nil, nil, fmt.Errorf("qstash: %w", err)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		if utils.IsTimeout(err) {
			return nil, nil, fmt.Errorf("%w: qstash: %v", utils.ErrUpstreamTimeout, err)
		}
		return nil, nil, fmt.Errorf("qstash request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("qstash: reading response: %w", err)
	}
	return resp, body, nil
}

func delaySeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
