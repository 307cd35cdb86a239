package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/satindergrewal/eqd/internal/bridge"
	"github.com/satindergrewal/eqd/internal/effect"
	"github.com/satindergrewal/eqd/internal/eqerr"
)

// Client is one connection to the service. It implements bridge.Conn.
type Client struct {
	baseURL string
	surface string
	http    *http.Client

	lostOnce sync.Once
	onLost   func()
}

var _ bridge.Conn = (*Client)(nil)

// NewClient creates a client for the service at baseURL. surface is sent
// with every call. onLost, when set, runs once on the first transport failure.
func NewClient(baseURL, surface string, onLost func()) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		surface: surface,
		http:    &http.Client{Timeout: 10 * time.Second},
		onLost:  onLost,
	}
}

func (c *Client) lost() {
	if c.onLost != nil {
		c.lostOnce.Do(c.onLost)
	}
}

// call posts a to method and decodes the reply value into out.
func (c *Client) call(ctx context.Context, method string, a args, out any) error {
	body, err := json.Marshal(a)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "marshal arguments"), eqerr.ErrOperationFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+method, bytes.NewReader(body))
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create request"), eqerr.ErrOperationFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSurface, c.surface)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.lost()
		}
		return errors.Mark(errors.Wrapf(err, "call %s", method), eqerr.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Mark(errors.Newf("call %s: status %d", method, resp.StatusCode), eqerr.ErrOperationFailed)
	}

	var rep reply
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		c.lost()
		return errors.Mark(errors.Wrapf(err, "decode %s reply", method), eqerr.ErrServiceUnavailable)
	}
	if rep.Error != nil {
		return eqerr.FromKind(rep.Error.Kind, rep.Error.Message)
	}
	if out != nil && len(rep.Value) > 0 {
		if err := json.Unmarshal(rep.Value, out); err != nil {
			return errors.Mark(errors.Wrapf(err, "decode %s value", method), eqerr.ErrOperationFailed)
		}
	}
	return nil
}

func (c *Client) callBool(ctx context.Context, method string, a args) (bool, error) {
	var v bool
	if err := c.call(ctx, method, a, &v); err != nil {
		return false, err
	}
	return v, nil
}

func (c *Client) callInt(ctx context.Context, method string, a args) (int, error) {
	var v int
	if err := c.call(ctx, method, a, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (c *Client) Initialize(ctx context.Context, sessionID int) (bool, error) {
	return c.callBool(ctx, MethodInitialize, args{SessionID: sessionID})
}

func (c *Client) SetEnabled(ctx context.Context, enabled bool) (bool, error) {
	return c.callBool(ctx, MethodSetEnabled, args{Enabled: enabled})
}

func (c *Client) IsEnabled(ctx context.Context) (bool, error) {
	return c.callBool(ctx, MethodIsEnabled, args{})
}

func (c *Client) BandCount(ctx context.Context) (int, error) {
	return c.callInt(ctx, MethodBandCount, args{})
}

func (c *Client) BandFreqRange(ctx context.Context, band int) (effect.FreqRange, error) {
	var rng effect.FreqRange
	if err := c.call(ctx, MethodBandFreqRange, args{Band: band}, &rng); err != nil {
		return effect.FreqRange{}, err
	}
	return rng, nil
}

func (c *Client) CenterFreq(ctx context.Context, band int) (int, error) {
	return c.callInt(ctx, MethodCenterFreq, args{Band: band})
}

func (c *Client) BandLevel(ctx context.Context, band int) (int, error) {
	return c.callInt(ctx, MethodBandLevel, args{Band: band})
}

func (c *Client) SetBandLevel(ctx context.Context, band, level int) (bool, error) {
	return c.callBool(ctx, MethodSetBandLevel, args{Band: band, Level: level})
}

func (c *Client) BandLevelRange(ctx context.Context) (effect.LevelRange, error) {
	var rng effect.LevelRange
	if err := c.call(ctx, MethodBandLevelRange, args{}, &rng); err != nil {
		return effect.LevelRange{}, err
	}
	return rng, nil
}

func (c *Client) PresetCount(ctx context.Context) (int, error) {
	return c.callInt(ctx, MethodPresetCount, args{})
}

func (c *Client) PresetName(ctx context.Context, preset int) (string, error) {
	var name string
	if err := c.call(ctx, MethodPresetName, args{Preset: preset}, &name); err != nil {
		return "", err
	}
	return name, nil
}

func (c *Client) UsePreset(ctx context.Context, preset int) (bool, error) {
	return c.callBool(ctx, MethodUsePreset, args{Preset: preset})
}

func (c *Client) CurrentPreset(ctx context.Context) (int, error) {
	p, err := c.callInt(ctx, MethodCurrentPreset, args{})
	if err != nil {
		return effect.NoPreset, err
	}
	return p, nil
}

func (c *Client) Release(ctx context.Context) (bool, error) {
	return c.callBool(ctx, MethodRelease, args{})
}
