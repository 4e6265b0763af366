package cdp

import (
	"testing"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pausedEvent(postData *string) *fetch.RequestPausedReply {
	status := 201
	return &fetch.RequestPausedReply{
		RequestID: "req-1",
		Request: network.Request{
			URL:      "https://www.example.com/atlas/v1/purchase-history/v2/details",
			Method:   "POST",
			Headers:  network.Headers(`{"Content-Type":"application/json"}`),
			PostData: postData,
		},
		ResponseStatusCode: &status,
		ResponseHeaders:    []fetch.HeaderEntry{{Name: "Content-Type", Value: "application/json"}},
	}
}

func TestToNeutralRequest(t *testing.T) {
	body := `{"storeNumber":"2"}`
	req := ToNeutralRequest(pausedEvent(&body))

	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "application/json", req.Headers.Get("content-type"))
	require.NotNil(t, req.PostBody())
	assert.Equal(t, body, *req.PostBody())
}

func TestToNeutralRequest_NoPostData(t *testing.T) {
	req := ToNeutralRequest(pausedEvent(nil))
	assert.False(t, req.HasBody)
	assert.Nil(t, req.PostBody())
}

func TestToExchange(t *testing.T) {
	ex := ToExchange(pausedEvent(nil), []byte(`{"ok":true}`))
	require.NotNil(t, ex.Response)
	assert.Equal(t, 201, ex.Response.StatusCode)
	assert.Equal(t, "application/json", ex.Response.Headers.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(ex.Response.Body))
}
