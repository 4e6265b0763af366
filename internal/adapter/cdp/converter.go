package cdp

import (
	"encoding/json"

	"xhrsaver/internal/protocol"
	"xhrsaver/pkg/traffic"

	"github.com/mafredri/cdp/protocol/fetch"
)

// ToNeutralRequest 将 CDP 事件转换为中立 Request 模型
func ToNeutralRequest(ev *fetch.RequestPausedReply) *traffic.Request {
	req := traffic.NewRequest()
	req.ID = string(ev.RequestID)
	req.URL = ev.Request.URL
	req.Method = ev.Request.Method

	var headers map[string]string
	if len(ev.Request.Headers) > 0 {
		if err := json.Unmarshal(ev.Request.Headers, &headers); err == nil {
			for k, v := range headers {
				req.Headers.Set(k, v)
			}
		}
	}

	// 只有 PostData 存在时才认为请求携带了 body
	if body := protocol.GetRequestBody(ev); body != nil {
		req.Body = []byte(*body)
		req.HasBody = true
	}
	return req
}

// ToNeutralResponse 将 CDP 事件转换为中立 Response 模型
func ToNeutralResponse(ev *fetch.RequestPausedReply, body []byte) *traffic.Response {
	res := traffic.NewResponse()
	if ev.ResponseStatusCode != nil {
		res.StatusCode = *ev.ResponseStatusCode
	}
	for _, h := range ev.ResponseHeaders {
		res.Headers.Set(h.Name, h.Value)
	}
	res.Body = body
	return res
}

// ToExchange 组合请求与响应
func ToExchange(ev *fetch.RequestPausedReply, body []byte) traffic.Exchange {
	return traffic.Exchange{Request: ToNeutralRequest(ev), Response: ToNeutralResponse(ev, body)}
}
