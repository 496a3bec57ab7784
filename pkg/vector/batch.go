package vector

import (
	"context"
	"fmt"

	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/pkg/retry"
	"github.com/wordflowlab/careerpilot/pkg/types"
)

// FailurePolicy 某个批次写入失败后的处理方式
type FailurePolicy string

const (
	// PolicyAbort 立即停止, 后续批次不再发送
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinue 跳过失败批次, 继续发送后续批次
	PolicyContinue FailurePolicy = "continue"
)

// DefaultBatchSize 默认每批记录数
const DefaultBatchSize = 50

// UpsertResult 批量写入的汇总
type UpsertResult struct {
	Upserted int // 已成功写入的记录数
	Batches  int // 总批次数
	Sent     int // 实际发出的批次数
}

// BatchUpserter 将记录按固定大小分批, 依次写入向量库。
// 批次之间严格串行, 同一时刻最多只有一个批次在途。
type BatchUpserter struct {
	Store     VectorStore
	Namespace string
	BatchSize int
	Policy    FailurePolicy
	Retry     retry.Policy
	Logger    *logging.Logger
}

// NewBatchUpserter 创建 BatchUpserter, 使用默认批大小与 abort 策略
func NewBatchUpserter(store VectorStore) *BatchUpserter {
	return &BatchUpserter{
		Store:     store,
		BatchSize: DefaultBatchSize,
		Policy:    PolicyAbort,
		Retry:     retry.None{},
		Logger:    logging.Default,
	}
}

// Partition 将 records 切成连续的批次, 每批不超过 size 条, 保持原始顺序
func Partition(records []types.UpsertRecord, size int) [][]types.UpsertRecord {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]types.UpsertRecord, 0, (len(records)+size-1)/size)
	for from := 0; from < len(records); from += size {
		to := min(from+size, len(records))
		batches = append(batches, records[from:to])
	}
	return batches
}

// Validate 检查单条记录是否可写入
func Validate(index int, r types.UpsertRecord) error {
	if r.ID == "" {
		return &types.InvalidRecordError{Index: index, ID: r.ID, Reason: "empty id"}
	}
	if len(r.Values) == 0 {
		return &types.InvalidRecordError{Index: index, ID: r.ID, Reason: "empty vector"}
	}
	return nil
}

// Upsert 分批写入。
//
// 批次在发送前整体校验, 含非法记录的批次返回 *types.InvalidRecordError 且不会发出请求。
// 写入失败按 Policy 处理, 返回 *types.UpsertFailedError, 已写入数量始终体现在结果中。
// ctx 取消后, 在途批次会完成, 剩余批次放弃并返回 ctx 的错误。
func (u *BatchUpserter) Upsert(ctx context.Context, records []types.UpsertRecord) (UpsertResult, error) {
	size := u.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	policy := u.Policy
	if policy == "" {
		policy = PolicyAbort
	}
	rp := u.Retry
	if rp == nil {
		rp = retry.None{}
	}
	logger := u.Logger
	if logger == nil {
		logger = logging.Default
	}

	batches := Partition(records, size)
	res := UpsertResult{Batches: len(batches)}
	var failed []types.BatchRange

	for i, batch := range batches {
		from := i * size
		to := from + len(batch)

		if err := ctx.Err(); err != nil {
			logger.Warn(ctx, "upsert.cancelled", map[string]interface{}{
				"batch":    i + 1,
				"batches":  len(batches),
				"upserted": res.Upserted,
			})
			return res, fmt.Errorf("upsert cancelled after %d of %d records: %w", res.Upserted, len(records), err)
		}

		for j, r := range batch {
			if err := Validate(from+j, r); err != nil {
				return res, err
			}
		}

		// 在途批次不受调用方取消影响
		inflight := context.WithoutCancel(ctx)
		res.Sent++
		err := rp.Do(inflight, func(ctx context.Context) error {
			return u.Store.Upsert(ctx, u.Namespace, batch)
		})
		if err != nil {
			logger.Error(ctx, "upsert.batch_failed", map[string]interface{}{
				"batch":   i + 1,
				"batches": len(batches),
				"from":    from,
				"to":      to,
				"error":   err.Error(),
			})
			failed = append(failed, types.BatchRange{Batch: i, From: from, To: to, Err: err})
			if policy == PolicyAbort {
				return res, &types.UpsertFailedError{Failed: failed, Upserted: res.Upserted}
			}
			continue
		}

		res.Upserted += len(batch)
		logger.Info(ctx, fmt.Sprintf("upserted batch %d of %d", i+1, len(batches)), map[string]interface{}{
			"namespace": u.Namespace,
			"records":   len(batch),
		})
	}

	if len(failed) > 0 {
		return res, &types.UpsertFailedError{Failed: failed, Upserted: res.Upserted}
	}
	return res, nil
}
