package contract

import (
	"context"
	"io"
)

// Reader: 输入源抽象（文件/目录/STDIN）。
// 约束：
// 1) 流式读取，按数据集（文件）维度回调；
// 2) DatasetID 稳定且去平台差异化；
// 3) 不做解码/业务解析，仅提供字节流；
// 4) 不在内部起并发。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(id DatasetID, r io.ReadCloser) error) error
}

// Decoder: 将单个数据集字节流解码为完整物化的有序点序列。
// 约束：
// 1) 输出按 group→sort 排序（来源无序时由实现负责排序）；
// 2) 不跨数据集合并；
// 3) 返回 (nil, nil) 表示该数据集不归本解码器处理（例如扩展名不匹配）；
// 4) 无内部并发。
type Decoder interface {
	Decode(ctx context.Context, id DatasetID, r io.Reader, fields Fields) ([]Point, error)
}
