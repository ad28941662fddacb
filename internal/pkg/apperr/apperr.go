// Package apperr 定义请求级错误分类：校验失败、权限不足、资源不存在、唯一约束冲突。
//
// 所有错误仅作用于单个请求，不做重试；HTTP 状态码的映射在 api 层完成。
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound 资源不存在，或不在调用者的可见范围内。
//
// 越权范围内的 id（如任务属于另一个项目）也归入此类，
// 避免向调用者泄露资源是否存在。
var ErrNotFound = errors.New("not found")

// ErrForbidden 策略检查拒绝。对外只返回笼统的 forbidden，不解释原因。
var ErrForbidden = errors.New("forbidden")

// ValidationError 表示请求数据校验失败，按字段记录失败原因。
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidation 创建单字段校验错误。
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// ConflictError 表示唯一约束冲突（如项目标题重复）。
//
// 对调用者按校验类错误（422）上报。
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s", e.Field)
}

// AsValidation 提取校验错误。
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsConflict 提取冲突错误。
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := errors.As(err, &ce)
	return ce, ok
}

// IsNotFound 判断是否为"不存在/不可见"错误。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden 判断是否为权限错误。
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
