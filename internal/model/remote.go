package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"budgetsense/internal/core"
)

// RemoteOracle calls a model server speaking the
// {"instances": [...]} -> {"predictions": [...]} JSON protocol.
type RemoteOracle struct {
	url    string
	client *http.Client
}

// NewRemoteOracle returns an oracle posting to url with the given timeout.
func NewRemoteOracle(url string, timeout time.Duration) *RemoteOracle {
	return NewRemoteOracleWithClient(url, &http.Client{Timeout: timeout})
}

// NewRemoteOracleWithClient returns an oracle using client.
func NewRemoteOracleWithClient(url string, client *http.Client) *RemoteOracle {
	return &RemoteOracle{url: url, client: client}
}

type instance struct {
	Ministry      int     `json:"Ministry"`
	PriorityLevel int     `json:"Priority_Level"`
	ProjectsCount int     `json:"Projects_Count"`
	RegionImpact  int     `json:"Region_Impact"`
	DevIndex      float64 `json:"Dev_Index"`
	PrevBudget    float64 `json:"Prev_Budget (Cr)"`
	GDPImpact     float64 `json:"GDP_Impact (%)"`
}

type predictRequest struct {
	Instances []instance `json:"instances"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
	Error       string    `json:"error,omitempty"`
}

func (o *RemoteOracle) Predict(ctx context.Context, f core.FeatureRecord) (float64, error) {
	body, err := json.Marshal(predictRequest{Instances: []instance{{
		Ministry:      f.Ministry.Code,
		PriorityLevel: f.PriorityLevel.Code,
		ProjectsCount: f.ProjectsCount,
		RegionImpact:  f.RegionImpact.Code,
		DevIndex:      f.DevIndex,
		PrevBudget:    f.PrevBudget,
		GDPImpact:     f.GDPImpact,
	}}})
	if err != nil {
		return 0, fmt.Errorf("marshal instances: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Model server responded",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	var out predictResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)

	switch {
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: model server returned %d", core.ErrModelUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		if out.Error != "" {
			return 0, fmt.Errorf("model rejected features: %s", out.Error)
		}
		return 0, fmt.Errorf("model rejected features: status %d", resp.StatusCode)
	case decodeErr != nil:
		return 0, fmt.Errorf("decode model response: %w", decodeErr)
	case len(out.Predictions) != 1:
		return 0, fmt.Errorf("model returned %d predictions for 1 instance", len(out.Predictions))
	}
	return out.Predictions[0], nil
}

// Ready reports whether the model server answers at all.
func (o *RemoteOracle) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, o.url, nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrModelUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: model server returned %d", core.ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}
