package interceptor

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"xhrsaver/pkg/traffic"
)

// Transport 装饰任意 http.RoundTripper，只观察目标请求，不修改请求与响应
type Transport struct {
	Base        http.RoundTripper
	Interceptor *Interceptor
}

// WrapTransport 返回装饰后的 RoundTripper；拦截器为空时原样返回 base
func WrapTransport(base http.RoundTripper, ic *Interceptor) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if ic == nil {
		return base
	}
	return &Transport{Base: base, Interceptor: ic}
}

// WrapClient 返回使用装饰 Transport 的客户端副本
func WrapClient(c *http.Client, ic *Interceptor) *http.Client {
	if c == nil {
		c = http.DefaultClient
	}
	out := *c
	out.Transport = WrapTransport(c.Transport, ic)
	return &out
}

// RoundTrip 实现 http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.Interceptor.Matches(req.Method, req.URL.String()) {
		return t.Base.RoundTrip(req)
	}

	captured := traffic.NewRequest()
	captured.URL = req.URL.String()
	captured.Method = req.Method
	captured.Headers.FromHTTP(req.Header)

	out := req
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		captured.Body = body
		captured.HasBody = true

		out = req.Clone(req.Context())
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}

	resp, err := t.Base.RoundTrip(out)
	if err != nil {
		return resp, err
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		// 读取失败时把同样的错误交还给调用方
		resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(respBody), errReader{err}))
		t.Interceptor.log.Err(err, "读取响应体失败", "url", captured.URL)
		return resp, nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	res := traffic.NewResponse()
	res.StatusCode = resp.StatusCode
	res.Headers.FromHTTP(resp.Header)
	res.Body = respBody

	t.Interceptor.Observe(context.WithoutCancel(req.Context()), traffic.Exchange{Request: captured, Response: res})
	return resp, nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
