package model

import "time"

type SessionID string
type TargetID string
type DownloadID string

// SessionConfig 会话配置
type SessionConfig struct {
	DevToolsURL      string `json:"devToolsURL"`
	ProcessTimeoutMS int    `json:"processTimeoutMS"`
	EventCapacity    int    `json:"eventCapacity"`
}

type TargetInfo struct {
	ID        TargetID `json:"id"`
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	IsCurrent bool     `json:"isCurrent"`
}

// Event 会话事件
type Event struct {
	Type       string     `json:"type"`
	Session    SessionID  `json:"session"`
	Target     TargetID   `json:"target"`
	URL        string     `json:"url,omitempty"`
	Method     string     `json:"method,omitempty"`
	Status     SaveStatus `json:"status,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	Error      string     `json:"error,omitempty"`
	Timestamp  int64      `json:"timestamp"`
	DownloadID DownloadID `json:"downloadId,omitempty"`
}

// InterceptConfig 拦截器配置，由 Bridge 构造后序列化注入
type InterceptConfig struct {
	TargetURL    string `json:"TARGET_URL"`
	TargetMethod string `json:"TARGET_METHOD"`
}

// CapturedExchange 一次匹配请求捕获到的数据
type CapturedExchange struct {
	ResponseBody string
	RequestBody  *string // nil 表示请求没有携带 body
}

// PageMessageType 页面脚本发出的消息类型
const PageMessageType = "FROM_PAGE_SCRIPT"

// PageMessage 页面内消息（window.postMessage）
type PageMessage struct {
	Type     string   `json:"type"`
	Source   TargetID `json:"-"`
	Data     string   `json:"data"`
	PostBody *string  `json:"postBody"`
}

// Action 跨上下文消息种类
type Action string

const ActionSaveJSON Action = "saveJson"

// RelayMessage Bridge 转发给 Saver 的消息
type RelayMessage struct {
	Action   Action  `json:"action"`
	Data     string  `json:"data"`
	PostBody *string `json:"postBody"`
}

type SaveStatus string

const (
	SaveStatusSkipped SaveStatus = "skipped"
	SaveStatusSuccess SaveStatus = "success"
	SaveStatusFailed  SaveStatus = "failed"
)

// SaveResponse Saver 的异步应答
type SaveResponse struct {
	Status     SaveStatus `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	Error      string     `json:"error,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	DownloadID DownloadID `json:"downloadId,omitempty"`
}

// PurchaseRecordKey 从请求体解析出的购买记录键
type PurchaseRecordKey struct {
	DivisionNumber  string
	StoreNumber     string
	TransactionDate string
	TerminalNumber  string
	TransactionID   string
}

type DownloadState string

const (
	DownloadInProgress  DownloadState = "in_progress"
	DownloadInterrupted DownloadState = "interrupted"
	DownloadComplete    DownloadState = "complete"
)

type ConflictAction string

const (
	ConflictUniquify  ConflictAction = "uniquify"
	ConflictOverwrite ConflictAction = "overwrite"
)

// DownloadOptions 下载请求
type DownloadOptions struct {
	URL            string         `json:"url"`
	Filename       string         `json:"filename"`
	SaveAs         bool           `json:"saveAs"`
	ConflictAction ConflictAction `json:"conflictAction,omitempty"`
}

// DownloadQuery 下载历史查询条件
type DownloadQuery struct {
	Query []string      `json:"query"`
	State DownloadState `json:"state,omitempty"`
	Limit int           `json:"limit,omitempty"`
}

// DownloadItem 下载历史中的一条记录
type DownloadItem struct {
	ID            DownloadID    `json:"id"`
	URL           string        `json:"url"`
	Filename      string        `json:"filename"`
	Mime          string        `json:"mime"`
	State         DownloadState `json:"state"`
	Error         string        `json:"error,omitempty"`
	BytesReceived int64         `json:"bytesReceived"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       *time.Time    `json:"endTime,omitempty"`
}
