package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// permanentError 不再重试的错误
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 包装后的错误会让 Retry 立即返回
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry 重试函数, 最多执行 times 次, 每次失败后等待 interval
// ctx 取消或 fn 返回 Permanent 错误时提前结束
func Retry(ctx context.Context, times int, interval time.Duration, fn func() error) error {
	if times < 1 {
		times = 1
	}
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("重试被取消: %w", errors.Join(ctx.Err(), err))
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
