package contract

import "context"

// ArtifactID: 与 DatasetID 等价的持久化工件标识（语义别名）。
type ArtifactID = DatasetID

// Sink: 输出端工厂；每个数据集打开一个 SegmentWriter。
// 输出模式（字段定义、表结构）由 Sink 自身负责，核心不感知。
type Sink interface {
	Open(ctx context.Context, id ArtifactID) (SegmentWriter, error)
}

// SegmentWriter: 只追加的记录写出。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. Append 失败仅影响当前记录（调用方记录并继续）；
//  3. Close 负责落盘/提交，失败需上抛。
type SegmentWriter interface {
	Append(ctx context.Context, seg Segment) error
	Close() error
}

// Aborter: 可选能力；数据集中止时丢弃未提交的输出（例如原子写的临时文件）。
// 不实现者由调用方退回 Close。
type Aborter interface {
	Abort() error
}
