// Package detection 提供物品识别服务客户端
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"movecrm-api/internal/config"
	"movecrm-api/internal/domain/entity"
	"movecrm-api/pkg/errors"
	"movecrm-api/pkg/metrics"
)

var tracer = otel.Tracer("detection")

// Client 识别服务 HTTP 客户端
type Client struct {
	endpoint   string
	httpClient *http.Client
}

type detectRequest struct {
	ImageURLs []string `json:"image_urls"`
	Prompt    string   `json:"prompt,omitempty"`
}

type detectResponse struct {
	Detections []entity.DetectionResult `json:"detections"`
}

// NewClient 创建识别服务客户端
func NewClient(cfg *config.DetectionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Detect 调用识别服务识别媒体中的物品
// 任何传输或响应异常都归一为 ErrDetectionUnavailable，由调用方决定降级策略
func (c *Client) Detect(ctx context.Context, mediaURLs []string, prompt string) ([]entity.DetectionResult, error) {
	ctx, span := tracer.Start(ctx, "detection.Detect",
		trace.WithAttributes(attribute.Int("detection.media_count", len(mediaURLs))))
	defer span.End()

	if len(mediaURLs) == 0 {
		return nil, nil
	}

	start := time.Now()
	results, err := c.doDetect(ctx, mediaURLs, prompt)
	metrics.DetectionCallDuration.WithLabelValues().Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		metrics.DetectionCallsTotal.WithLabelValues("error").Inc()
		return nil, errors.ErrDetectionUnavailable.WithError(err)
	}

	metrics.DetectionCallsTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("detection.result_count", len(results)))
	return results, nil
}

func (c *Client) doDetect(ctx context.Context, mediaURLs []string, prompt string) ([]entity.DetectionResult, error) {
	reqBody, err := json.Marshal(&detectRequest{
		ImageURLs: mediaURLs,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal detect request: %w", err)
	}

	endpoint := strings.TrimRight(c.endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("detection endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid detection endpoint: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/detect"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create detect request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("detection request failed: status=%d", httpResp.StatusCode)
	}

	var resp detectResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode detect response: %w", err)
	}
	return resp.Detections, nil
}
