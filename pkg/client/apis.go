package client

import (
	"context"
	"encoding/json"
	"net/url"

	pkgerrors "github.com/pkg/errors"

	"github.com/volumetria/pipetcal/pkg/api"
	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

// Calculate runs one calibration on the daemon.
func (c *Client) Calculate(ctx context.Context, req *api.Request) (*api.Response, error) {
	ret, err := c.Post(ctx, "/calcular", req)
	if err != nil {
		return nil, err
	}
	var resp api.Response
	if err := json.Unmarshal(ret, &resp); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal calibration result")
	}
	return &resp, nil
}

func (c *Client) GetConstants(ctx context.Context) (gravimetric.Constants, error) {
	var consts gravimetric.Constants
	ret, err := c.Get(ctx, "/constantes")
	if err != nil {
		return consts, pkgerrors.Wrapf(err, "failed to get constants")
	}
	if err := json.Unmarshal(ret, &consts); err != nil {
		return consts, pkgerrors.Wrapf(err, "failed to unmarshal constants")
	}
	return consts, nil
}

func (c *Client) GetEMT(ctx context.Context) (gravimetric.EMTTables, error) {
	ret, err := c.Get(ctx, "/emt")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get tolerance tables")
	}
	var tables gravimetric.EMTTables
	if err := json.Unmarshal(ret, &tables); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal tolerance tables")
	}
	return tables, nil
}

// SetEMT replaces the tolerance table of class on the daemon.
func (c *Client) SetEMT(ctx context.Context, class string, rows []gravimetric.EMTEntry) error {
	_, err := c.Put(ctx, "/emt/"+url.PathEscape(class), rows)
	return err
}

// GetVersion returns the daemon's version and commit.
func (c *Client) GetVersion(ctx context.Context) (string, string, error) {
	ret, err := c.Get(ctx, "/version")
	if err != nil {
		return "", "", pkgerrors.Wrapf(err, "failed to get version")
	}
	var v struct {
		Version string `json:"version"`
		Commit  string `json:"commit"`
	}
	if err := json.Unmarshal(ret, &v); err != nil {
		return "", "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v.Version, v.Commit, nil
}

func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.Get(ctx, "/healthz")
	return err
}
