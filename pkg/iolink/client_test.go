package iolink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/flowpro/pkg/decode"
)

// fakeMaster serves canned bodies keyed by request path.
type fakeMaster struct {
	mu       sync.Mutex
	bodies   map[string]string
	requests []request
}

func (f *fakeMaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&req) != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	body, ok := f.bodies[req.Adr]
	f.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, bodies map[string]string) (*Client, *fakeMaster) {
	t.Helper()
	m := &fakeMaster{bodies: bodies}
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client()), m
}

func TestQueryRequestShape(t *testing.T) {
	a := assert.New(t)

	c, m := newTestClient(t, map[string]string{
		ProcessDataPath(1): `{"cid":-1,"data":{"value":"01EC"},"code":200}`,
	})

	hex, err := c.ProcessData(context.Background(), 1)
	a.NoError(err)
	a.Equal("01EC", hex)

	require.Len(t, m.requests, 1)
	a.Equal(request{Code: "request", CID: -1, Adr: "/iolinkmaster/port[1]/iolinkdevice/pdin/getdata"}, m.requests[0])
}

func TestDeviceID(t *testing.T) {
	a := assert.New(t)

	c, _ := newTestClient(t, map[string]string{
		DeviceIDPath(1): `{"data":{"value":452}}`,
		DeviceIDPath(2): `{"data":{"value":"2015"}}`,
		DeviceIDPath(3): `{"data":{"value":"PN7692"}}`,
	})

	id, err := c.DeviceID(context.Background(), 1)
	a.NoError(err)
	a.Equal(452, id)

	id, err = c.DeviceID(context.Background(), 2)
	a.NoError(err)
	a.Equal(2015, id)

	_, err = c.DeviceID(context.Background(), 3)
	var pe *ProtocolError
	a.True(errors.As(err, &pe))
	a.ErrorIs(err, ErrNotInteger)
}

func TestQueryErrors(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"/garbage":  `<html>`,
		"/no-data":  `{"code":200}`,
		"/null":     `{"data":{"value":null}}`,
		"/bad-code": `{"data":{"value":"00"},"code":503}`,
	})

	tests := []struct {
		path      string
		transport bool
	}{
		{path: "/garbage"},
		{path: "/no-data"},
		{path: "/null"},
		{path: "/bad-code"},
		{path: "/missing", transport: true},
	}

	for _, tt := range tests {
		_, err := c.Query(context.Background(), tt.path)
		var te *TransportError
		var pe *ProtocolError
		if tt.transport {
			assert.True(t, errors.As(err, &te), tt.path)
		} else {
			assert.True(t, errors.As(err, &pe), tt.path)
		}
	}
}

func TestQueryConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Query(context.Background(), ProcessDataPath(1))
	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestInventory(t *testing.T) {
	a := assert.New(t)

	c, _ := newTestClient(t, map[string]string{
		DeviceIDPath(1): `{"data":{"value":2015}}`,
		DeviceIDPath(2): `{"data":{"value":452}}`,
		DeviceIDPath(3): `{"data":{"value":9999}}`,
		// port 4 is empty and the master answers 404
	})

	channels, err := Inventory(context.Background(), c, DefaultPorts)
	require.NoError(t, err)
	require.Len(t, channels, 4)

	a.Equal(1, channels[0].Port)
	a.True(channels[0].Measures())
	a.Equal(decode.KindFlowKeyence, channels[0].Profile.Decoder)
	a.Equal(ProcessDataPath(1), channels[0].Path)

	a.Equal(RolePressure, channels[1].Profile.Role)
	a.Equal("PN7692 IFM Pressure Sensor", channels[1].Name())

	a.False(channels[2].Attached())
	a.Equal(9999, channels[2].DeviceID)

	a.False(channels[3].Attached())
	a.Equal("None", channels[3].Name())
}

func TestInventoryAdapterHasNoRole(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		DeviceIDPath(2): `{"data":{"value":1313}}`,
	})

	channels, err := Inventory(context.Background(), c, []int{2})
	require.NoError(t, err)
	assert.True(t, channels[0].Attached())
	assert.False(t, channels[0].Measures())
}

func TestValidatePorts(t *testing.T) {
	a := assert.New(t)

	a.NoError(ValidatePorts([]int{4, 1}))
	a.ErrorIs(ValidatePorts(nil), ErrInvalidPort)
	a.ErrorIs(ValidatePorts([]int{0}), ErrInvalidPort)
	a.ErrorIs(ValidatePorts([]int{5}), ErrInvalidPort)
	a.ErrorIs(ValidatePorts([]int{2, 2}), ErrInvalidPort)
}
