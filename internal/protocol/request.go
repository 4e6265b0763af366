package protocol

import (
	"encoding/base64"

	"github.com/mafredri/cdp/protocol/fetch"
)

// GetRequestBody 提取暂停事件中的请求体，没有请求体时返回 nil
func GetRequestBody(ev *fetch.RequestPausedReply) *string {
	if ev == nil || ev.Request.PostData == nil {
		return nil
	}
	s := *ev.Request.PostData
	return &s
}

// DecodeBody 按 Fetch.getResponseBody 的 base64 标志解码响应体
func DecodeBody(body string, base64Encoded bool) ([]byte, error) {
	if !base64Encoded {
		return []byte(body), nil
	}
	return base64.StdEncoding.DecodeString(body)
}
