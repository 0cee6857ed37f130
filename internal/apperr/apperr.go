// Package apperr 定义了编排层的错误分类。
// 每个错误都带有 Kind，handler 层据此映射 HTTP 状态码。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 表示错误所属的类别。
type Kind string

const (
	KindValidation Kind = "validation"
	KindBlobWrite  Kind = "blob_write"
	KindBlobRead   Kind = "blob_read"
	KindBlobDelete Kind = "blob_delete"
	KindIndexing   Kind = "indexing"
	KindProcessing Kind = "processing"
	KindCatalog    Kind = "catalog"
	KindCompare    Kind = "compare"
	KindBatch      Kind = "batch"
	KindUpload     Kind = "upload"
	KindDelete     Kind = "delete"
	KindNotFound   Kind = "not_found"
)

// 每个类别对应一个哨兵错误，便于 errors.Is 判断。
var (
	ErrValidation = errors.New("validation error")
	ErrBlobWrite  = errors.New("blob write error")
	ErrBlobRead   = errors.New("blob read error")
	ErrBlobDelete = errors.New("blob delete error")
	ErrIndexing   = errors.New("indexing error")
	ErrProcessing = errors.New("processing error")
	ErrCatalog    = errors.New("catalog error")
	ErrCompare    = errors.New("compare error")
	ErrBatch      = errors.New("batch error")
	ErrUpload     = errors.New("upload error")
	ErrDelete     = errors.New("delete error")
	ErrNotFound   = errors.New("not found")
)

var sentinels = map[Kind]error{
	KindValidation: ErrValidation,
	KindBlobWrite:  ErrBlobWrite,
	KindBlobRead:   ErrBlobRead,
	KindBlobDelete: ErrBlobDelete,
	KindIndexing:   ErrIndexing,
	KindProcessing: ErrProcessing,
	KindCatalog:    ErrCatalog,
	KindCompare:    ErrCompare,
	KindBatch:      ErrBatch,
	KindUpload:     ErrUpload,
	KindDelete:     ErrDelete,
	KindNotFound:   ErrNotFound,
}

// Error 是编排层返回的结构化错误。
// Detail 是面向用户的可读信息（外部服务返回的 detail 原样保留），Err 是底层原因。
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, apperr.ErrIndexing) 这类判断成立。
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New 创建一个不带底层原因的错误。
func New(kind Kind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Wrap 用指定类别包装底层错误，detail 为空时沿用底层错误信息。
func Wrap(kind Kind, op string, err error, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// Validation 是最常用的构造函数的简写。
func Validation(op, format string, args ...interface{}) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

// KindOf 返回错误链上最外层 *Error 的类别，非 *Error 返回空字符串。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message 返回适合展示给用户的信息。
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Detail != "" {
			return e.Detail
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
