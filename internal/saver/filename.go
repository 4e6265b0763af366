package saver

import (
	"strings"

	ilog "xhrsaver/internal/logger"
	"xhrsaver/pkg/model"

	"github.com/tidwall/gjson"
)

const (
	// SubDirectory 保存目录前缀
	SubDirectory = "gerbes/"
	// DefaultFilename 无法从请求体得到文件名时使用
	DefaultFilename = "purchase-history-details.json"

	filenameDelimiter = "~"
	filenameExt       = ".json"
)

// keyFields 文件名字段，顺序即文件名中的顺序
var keyFields = []string{"divisionNumber", "storeNumber", "transactionDate", "terminalNumber", "transactionId"}

// ParseRecordKey 从请求体解析购买记录键；请求体非法或字段不全时返回 false
func ParseRecordKey(postBody *string, l ilog.Logger) (model.PurchaseRecordKey, bool) {
	var key model.PurchaseRecordKey
	if l == nil {
		l = ilog.NewNop()
	}
	if postBody == nil || *postBody == "" {
		l.Warn("请求体为空，使用默认文件名")
		return key, false
	}
	if !gjson.Valid(*postBody) {
		l.Error("解析请求体失败，使用默认文件名", "postBody", *postBody)
		return key, false
	}

	params := gjson.Parse(*postBody)
	if params.IsArray() {
		params = params.Get("0")
	}
	if !params.IsObject() {
		l.Warn("请求体不是对象或数组为空，使用默认文件名")
		return key, false
	}

	values := make([]string, len(keyFields))
	for i, f := range keyFields {
		v, ok := truthy(params.Get(f))
		if !ok {
			l.Warn("请求体缺少文件名所需字段，使用默认文件名", "field", f, "params", params.Raw)
			return key, false
		}
		values[i] = v
	}
	key = model.PurchaseRecordKey{
		DivisionNumber:  values[0],
		StoreNumber:     values[1],
		TransactionDate: values[2],
		TerminalNumber:  values[3],
		TransactionID:   values[4],
	}
	return key, true
}

// truthy 只接受非空字符串、非零数字和 true；对象与数组视为缺失
func truthy(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		return r.Str, r.Str != ""
	case gjson.Number:
		return r.String(), r.Num != 0
	case gjson.True:
		return "true", true
	default:
		return "", false
	}
}

// Filename 由记录键拼出文件名
func Filename(key model.PurchaseRecordKey) string {
	return strings.Join([]string{
		key.DivisionNumber,
		key.StoreNumber,
		key.TransactionDate,
		key.TerminalNumber,
		key.TransactionID,
	}, filenameDelimiter) + filenameExt
}

// DeriveFilename 推导保存文件名，失败时回落到默认文件名
func DeriveFilename(postBody *string, l ilog.Logger) string {
	key, ok := ParseRecordKey(postBody, l)
	if !ok {
		return DefaultFilename
	}
	return Filename(key)
}
