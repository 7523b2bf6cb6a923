package iolink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	timeout = 3 * time.Second

	requestCode   = "request"
	requestCID    = -1
	statusOK      = 200
	maxBodyLength = 1 << 20
)

var (
	ErrMissingValue = errors.New("response has no data.value")
	ErrNotHex       = errors.New("value is not a hex string")
	ErrNotInteger   = errors.New("value is not an integer")
)

// TransportError is a connection or HTTP level failure.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error requesting %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a response that arrived but could not be understood.
type ProtocolError struct {
	Path string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error requesting %s: %v", e.Path, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

type request struct {
	Code string `json:"code"`
	CID  int    `json:"cid"`
	Adr  string `json:"adr"`
}

type response struct {
	Code *int `json:"code"`
	Data *struct {
		Value json.RawMessage `json:"value"`
	} `json:"data"`
}

// Value is the raw data.value of a response.
type Value json.RawMessage

// Int returns the value as an integer. Numeric strings are accepted.
func (v Value) Int() (int, error) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if json.Unmarshal(v, &s) != nil {
			return 0, ErrNotInteger
		}
		n = json.Number(strings.TrimSpace(s))
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, ErrNotInteger
	}
	return i, nil
}

// Hex returns the value as a hex string.
func (v Value) Hex() (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil || s == "" {
		return "", ErrNotHex
	}
	return s, nil
}

// Client talks to one IO-Link master over its JSON endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client posting to baseURL. A nil httpClient gets a
// default with a short timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// NewMasterClient returns a client for the master at addr.
func NewMasterClient(addr netip.Addr) *Client {
	return NewClient("http://"+addr.String(), nil)
}

func (c *Client) BaseURL() string { return c.baseURL }

// Query performs one request/response exchange for path. It never retries.
func (c *Client) Query(ctx context.Context, path string) (Value, error) {
	body, err := json.Marshal(request{Code: requestCode, CID: requestCID, Adr: path})
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Path: path, Err: errors.Errorf("unexpected status %s", resp.Status)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLength))
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}

	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &ProtocolError{Path: path, Err: err}
	}
	if r.Code != nil && *r.Code != statusOK {
		return nil, &ProtocolError{Path: path, Err: errors.Errorf("master returned code %d", *r.Code)}
	}
	if r.Data == nil || len(r.Data.Value) == 0 || string(r.Data.Value) == "null" {
		return nil, &ProtocolError{Path: path, Err: ErrMissingValue}
	}
	return Value(r.Data.Value), nil
}

// DeviceID asks which device type is attached to port.
func (c *Client) DeviceID(ctx context.Context, port int) (int, error) {
	path := DeviceIDPath(port)
	v, err := c.Query(ctx, path)
	if err != nil {
		return 0, err
	}
	id, err := v.Int()
	if err != nil {
		return 0, &ProtocolError{Path: path, Err: err}
	}
	return id, nil
}

// ProcessData reads the live process data of port as hex.
func (c *Client) ProcessData(ctx context.Context, port int) (string, error) {
	path := ProcessDataPath(port)
	v, err := c.Query(ctx, path)
	if err != nil {
		return "", err
	}
	s, err := v.Hex()
	if err != nil {
		return "", &ProtocolError{Path: path, Err: err}
	}
	return s, nil
}

func DeviceIDPath(port int) string {
	return fmt.Sprintf("/iolinkmaster/port[%d]/iolinkdevice/deviceid/getdata", port)
}

func ProcessDataPath(port int) string {
	return fmt.Sprintf("/iolinkmaster/port[%d]/iolinkdevice/pdin/getdata", port)
}
