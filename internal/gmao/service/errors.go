package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"gorm.io/gorm"
)

// ValidationError 输入错误，调用方可修正，不产生任何写入
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConsistencyError 操作会破坏不变量（库存不足、存在依赖记录等），在任何写入前中止
type ConsistencyError struct {
	Reason     string
	Dependents map[string]int64
}

func (e *ConsistencyError) Error() string {
	if len(e.Dependents) == 0 {
		return e.Reason
	}
	keys := make([]string, 0, len(e.Dependents))
	for k := range e.Dependents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, e.Dependents[k]))
	}
	return fmt.Sprintf("%s (%s)", e.Reason, strings.Join(parts, ", "))
}

// dependents 只保留计数大于0的依赖，全部为0时返回 nil
func dependents(reason string, counts map[string]int64) error {
	blocking := make(map[string]int64)
	for k, v := range counts {
		if v > 0 {
			blocking[k] = v
		}
	}
	if len(blocking) == 0 {
		return nil
	}
	return &ConsistencyError{Reason: reason, Dependents: blocking}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// notFoundf 包装 ErrNotFound 并带上实体名
func notFoundf(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, repository.ErrNotFound)
}

// translateDBError 将唯一约束冲突转换为 ValidationError
func translateDBError(err error, field string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return validationf(field, "already exists")
	}
	return err
}

// wrapNotFound 为 ErrNotFound 补充实体信息，其他错误原样返回
func wrapNotFound(err error, what, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundf(what, id)
	}
	return err
}
