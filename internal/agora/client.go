package agora

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/clearcast/recording-backend/config"
)

const resourceExpiredHour = 24 // provider-side lease on an acquired resource

// Client talks to the Agora cloud recording REST control plane.
type Client struct {
	http   *resty.Client
	appID  string
	logger *zap.Logger
}

// NewClient creates a control-plane client using customer basic-auth credentials.
func NewClient(cfg config.AgoraConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.CustomerID, cfg.CustomerSecret).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.RequestTimeout)
	return &Client{http: http, appID: cfg.AppID, logger: logger}
}

// Acquire reserves a recording resource for the channel and returns its resource ID.
func (c *Client) Acquire(ctx context.Context, channelName, uid string) (string, error) {
	var result acquireResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(acquireRequest{
			Cname: channelName,
			UID:   uid,
			ClientRequest: acquireClientRequest{
				ResourceExpiredHour: resourceExpiredHour,
			},
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1/apps/%s/cloud_recording/acquire", c.appID))
	if err != nil {
		return "", fmt.Errorf("acquire resource: %w", err)
	}
	if resp.IsError() {
		return "", &APIError{Code: apiErr.Code, HTTPStatus: resp.StatusCode(), Reason: apiErr.text()}
	}
	c.logger.Debug("resource acquired", zap.String("channel", channelName), zap.String("resource_id", result.ResourceID))
	return result.ResourceID, nil
}

// Start begins recording on an acquired resource and returns the session ID (sid).
func (c *Client) Start(ctx context.Context, resourceID, mode string, req StartRequest) (string, error) {
	var result startResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1/apps/%s/cloud_recording/resourceid/%s/mode/%s/start", c.appID, resourceID, mode))
	if err != nil {
		return "", fmt.Errorf("start recording: %w", err)
	}
	if resp.IsError() {
		return "", &APIError{Code: apiErr.Code, HTTPStatus: resp.StatusCode(), Reason: apiErr.text()}
	}
	c.logger.Debug("recording started", zap.String("channel", req.Cname), zap.String("sid", result.SID))
	return result.SID, nil
}

// Stop ends a recording session. asyncStop tells the provider whether to
// return immediately or block until its own upload completes.
func (c *Client) Stop(ctx context.Context, resourceID, sid, mode, channelName, uid string, asyncStop bool) (*ServerResponse, error) {
	var result stopResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(stopRequest{
			Cname:         channelName,
			UID:           uid,
			ClientRequest: stopClientRequest{AsyncStop: asyncStop},
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1/apps/%s/cloud_recording/resourceid/%s/sid/%s/mode/%s/stop", c.appID, resourceID, sid, mode))
	if err != nil {
		return nil, fmt.Errorf("stop recording: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Code: apiErr.Code, HTTPStatus: resp.StatusCode(), Reason: apiErr.text()}
	}
	c.logger.Debug("recording stopped", zap.String("sid", sid), zap.String("uploading_status", result.ServerResponse.UploadingStatus))
	return &result.ServerResponse, nil
}

// Query returns the provider's own status for a recording session. Side-effect free.
func (c *Client) Query(ctx context.Context, resourceID, sid, mode string) (*ServerResponse, error) {
	var result queryResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&apiErr).
		Get(fmt.Sprintf("/v1/apps/%s/cloud_recording/resourceid/%s/sid/%s/mode/%s/query", c.appID, resourceID, sid, mode))
	if err != nil {
		return nil, fmt.Errorf("query recording: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Code: apiErr.Code, HTTPStatus: resp.StatusCode(), Reason: apiErr.text()}
	}
	return &result.ServerResponse, nil
}

// UpdateLayout changes the composite layout of a mixed recording.
func (c *Client) UpdateLayout(ctx context.Context, resourceID, sid, mode, channelName, uid string, layout int, backgroundColor string) error {
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(updateLayoutRequest{
			Cname: channelName,
			UID:   uid,
			ClientRequest: layoutClientRequest{
				MixedVideoLayout: layout,
				BackgroundColor:  backgroundColor,
			},
		}).
		SetError(&apiErr).
		Post(fmt.Sprintf("/v1/apps/%s/cloud_recording/resourceid/%s/sid/%s/mode/%s/updateLayout", c.appID, resourceID, sid, mode))
	if err != nil {
		return fmt.Errorf("update layout: %w", err)
	}
	if resp.IsError() {
		return &APIError{Code: apiErr.Code, HTTPStatus: resp.StatusCode(), Reason: apiErr.text()}
	}
	return nil
}
