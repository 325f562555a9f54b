package rowstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable 在底层行存储（网络或服务）不可达时返回。
	ErrStoreUnavailable = errors.New("row store unavailable")
	// ErrIndexOutOfRange 在按逻辑位置删除越界时返回。
	ErrIndexOutOfRange = errors.New("row index out of range")
)

// Store 抽象外部的按序列追加式行存储。
// 每个 series 对应一条按时间先后排列的行序列；逻辑下标只在一次
// ListAll 快照内有效，调用方删除前必须重新列举。
// 设置记录是单独的键值结构，写入未知键时扩展而不是报错。
type Store interface {
	Append(ctx context.Context, series string, row []string) error
	ListAll(ctx context.Context, series string) ([][]string, error)
	DeleteAt(ctx context.Context, series string, index int) error
	ReadSettings(ctx context.Context) (map[string]string, error)
	WriteSetting(ctx context.Context, key, value string) error
}

// unavailable 统一包装底层错误，保证调用方可以用 errors.Is 识别。
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
