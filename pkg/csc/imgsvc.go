package csc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ImageNameClient obtains observatory-wide observation ids from the
// image name service, so files written by different instruments never
// collide.
type ImageNameClient struct {
	baseURL string
	camera  string
	index   int
	client  *http.Client
}

// ObsID is one allocated observation id with its per-day sequence
// number.
type ObsID struct {
	Name   string `json:"name"`
	SeqNum int    `json:"sequence"`
}

// Controller returns the controller code, the first underscore-separated
// field of the observation id.
func (o ObsID) Controller() string {
	if i := strings.Index(o.Name, "_"); i > 0 {
		return o.Name[:i]
	}
	return o.Name
}

func NewImageNameClient(baseURL, camera string, index int) *ImageNameClient {
	return &ImageNameClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		camera:  camera,
		index:   index,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Next reserves n observation ids.
func (c *ImageNameClient) Next(ctx context.Context, n int) ([]ObsID, error) {
	url := fmt.Sprintf("%s/%s/%d?n=%d", c.baseURL, c.camera, c.index, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query image name service: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image name service returned %s", resp.Status)
	}

	var ids []ObsID
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to decode image name response: %v", err)
	}
	if len(ids) != n {
		return nil, fmt.Errorf("image name service returned %d ids, wanted %d", len(ids), n)
	}
	return ids, nil
}
