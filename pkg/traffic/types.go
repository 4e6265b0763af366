package traffic

import (
	"net/http"
	"strings"
)

// Header 封装通用的头部操作
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// FromHTTP 从 net/http 头部复制（多值取第一个）
func (h Header) FromHTTP(src http.Header) {
	for k, v := range src {
		if len(v) > 0 {
			h.Set(k, v[0])
		}
	}
}

// Request 中立的请求模型，HTTP 客户端和 CDP 两种来源共用
type Request struct {
	ID      string // 事务唯一ID
	URL     string // 完整URL
	Method  string // HTTP方法
	Headers Header // 请求头
	Body    []byte // 请求体原始数据
	HasBody bool   // 是否携带请求体（空 body 与无 body 区分）
}

// Response 中立的响应模型
type Response struct {
	StatusCode int    // 状态码
	Headers    Header // 响应头
	Body       []byte // 响应体数据
}

// Exchange 一次完整的请求/响应
type Exchange struct {
	Request  *Request
	Response *Response
}

// NewRequest 创建初始化请求对象
func NewRequest() *Request {
	return &Request{
		Headers: make(Header),
	}
}

// NewResponse 创建初始化响应对象
func NewResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    make(Header),
	}
}

// PostBody 返回请求体文本，无请求体时返回 nil
func (r *Request) PostBody() *string {
	if r == nil || !r.HasBody {
		return nil
	}
	s := string(r.Body)
	return &s
}
