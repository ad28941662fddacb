package store

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// PageSize 列表接口的固定页大小。
const PageSize = 20

// cursor 编码游标分页的位置：上一页最后一行的 (updated_at, id)。
//
// 排序键为 updated_at desc, id desc，两个字段一起构成稳定的全序，
// 深分页无需 offset 扫描。
type cursor struct {
	UpdatedAt int64 `json:"u"` // unix 纳秒
	ID        uint  `json:"id"`
}

// encodeCursor 序列化游标为 URL 安全的不透明字符串。
func encodeCursor(updatedAt time.Time, id uint) string {
	raw, _ := json.Marshal(cursor{UpdatedAt: updatedAt.UnixNano(), ID: id})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor 解析游标。空串表示第一页；非法游标按第一页处理。
func decodeCursor(s string) (time.Time, uint, bool) {
	if s == "" {
		return time.Time{}, 0, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return time.Time{}, 0, false
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == 0 {
		return time.Time{}, 0, false
	}
	return time.Unix(0, c.UpdatedAt), c.ID, true
}
