package chat

import (
	"fmt"
	"time"
)

// SessionID 是客户端生成的会话标识，仅用于让后端关联同一段对话。
type SessionID string

// NewSessionID returns a timestamp-derived identifier. One is generated per
// controller and never reused across restarts.
func NewSessionID(now time.Time) SessionID {
	return SessionID(fmt.Sprintf("session_%d", now.UnixMilli()))
}

// String implements fmt.Stringer.
func (id SessionID) String() string {
	return string(id)
}
