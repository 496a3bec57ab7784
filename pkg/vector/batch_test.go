package vector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordflowlab/careerpilot/pkg/logging"
	"github.com/wordflowlab/careerpilot/pkg/types"
)

// recordingStore 记录每次 Upsert 调用, 可按调用序号注入失败
type recordingStore struct {
	mu       sync.Mutex
	calls    [][]types.UpsertRecord
	failOn   map[int]error
	inflight int
	maxSeen  int
	onCall   func(call int)
}

func (s *recordingStore) Upsert(ctx context.Context, _ string, records []types.UpsertRecord) error {
	s.mu.Lock()
	call := len(s.calls)
	s.calls = append(s.calls, append([]types.UpsertRecord(nil), records...))
	s.inflight++
	if s.inflight > s.maxSeen {
		s.maxSeen = s.inflight
	}
	hook := s.onCall
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.failOn[call]; ok {
		return err
	}
	return nil
}

func (s *recordingStore) Query(context.Context, Query) ([]Hit, error) { return nil, nil }
func (s *recordingStore) Close() error { return nil }

func makeRecords(n int) []types.UpsertRecord {
	out := make([]types.UpsertRecord, n)
	for i := range out {
		out[i] = types.UpsertRecord{ID: fmt.Sprintf("doc_chunk_%d", i), Values: []float32{float32(i) + 1}}
	}
	return out
}

func quietUpserter(store VectorStore) *BatchUpserter {
	u := NewBatchUpserter(store)
	u.Logger = logging.NewLogger(logging.LevelError, logging.NewWriterTransport("discard", io.Discard))
	return u
}

func TestPartition(t *testing.T) {
	for _, tc := range []struct{ n, size, want int }{
		{0, 50, 0}, {1, 50, 1}, {50, 50, 1}, {51, 50, 2}, {120, 50, 3}, {7, 3, 3},
	} {
		batches := Partition(makeRecords(tc.n), tc.size)
		require.Len(t, batches, tc.want, "n=%d size=%d", tc.n, tc.size)

		total := 0
		for _, b := range batches {
			assert.LessOrEqual(t, len(b), tc.size)
			for _, r := range b {
				assert.Equal(t, fmt.Sprintf("doc_chunk_%d", total), r.ID)
				total++
			}
		}
		assert.Equal(t, tc.n, total)
	}
}

func TestBatchUpserter_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("ceil(N/B) 次调用且保持顺序", func(t *testing.T) {
		store := &recordingStore{}
		u := quietUpserter(store)
		u.BatchSize = 50

		res, err := u.Upsert(ctx, makeRecords(120))
		require.NoError(t, err)
		assert.Equal(t, 120, res.Upserted)
		assert.Equal(t, 3, res.Batches)
		require.Len(t, store.calls, 3)
		assert.Len(t, store.calls[0], 50)
		assert.Len(t, store.calls[1], 50)
		assert.Len(t, store.calls[2], 20)
		assert.Equal(t, "doc_chunk_50", store.calls[1][0].ID)
		assert.Equal(t, 1, store.maxSeen, "batches must never overlap")
	})

	t.Run("空输入不发请求", func(t *testing.T) {
		store := &recordingStore{}
		res, err := quietUpserter(store).Upsert(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, res.Upserted)
		assert.Empty(t, store.calls)
	})

	t.Run("非法记录在发送前失败", func(t *testing.T) {
		store := &recordingStore{}
		u := quietUpserter(store)
		u.BatchSize = 2

		records := makeRecords(5)
		records[3].Values = nil

		res, err := u.Upsert(ctx, records)
		var ire *types.InvalidRecordError
		require.ErrorAs(t, err, &ire)
		assert.Equal(t, 3, ire.Index)
		assert.Equal(t, "empty vector", ire.Reason)
		assert.Len(t, store.calls, 1, "the batch holding the bad record is never sent")
		assert.Equal(t, 2, res.Upserted)
	})

	t.Run("空 ID 也是非法记录", func(t *testing.T) {
		store := &recordingStore{}
		records := makeRecords(1)
		records[0].ID = ""
		_, err := quietUpserter(store).Upsert(ctx, records)
		var ire *types.InvalidRecordError
		require.ErrorAs(t, err, &ire)
		assert.Empty(t, store.calls)
	})

	t.Run("abort 策略报告已写入数量", func(t *testing.T) {
		boom := errors.New("503 from index")
		store := &recordingStore{failOn: map[int]error{1: boom}}
		u := quietUpserter(store)
		u.BatchSize = 10

		res, err := u.Upsert(ctx, makeRecords(35))
		var ufe *types.UpsertFailedError
		require.ErrorAs(t, err, &ufe)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 10, ufe.Upserted)
		assert.Equal(t, 10, res.Upserted)
		require.Len(t, ufe.Failed, 1)
		assert.Equal(t, 10, ufe.Failed[0].From)
		assert.Equal(t, 20, ufe.Failed[0].To)
		assert.Len(t, store.calls, 2)
	})

	t.Run("continue 策略跳过失败批次", func(t *testing.T) {
		store := &recordingStore{failOn: map[int]error{0: errors.New("x"), 2: errors.New("y")}}
		u := quietUpserter(store)
		u.BatchSize = 10
		u.Policy = PolicyContinue

		res, err := u.Upsert(ctx, makeRecords(35))
		var ufe *types.UpsertFailedError
		require.ErrorAs(t, err, &ufe)
		assert.Len(t, store.calls, 4)
		assert.Equal(t, 15, res.Upserted)
		assert.Equal(t, 15, ufe.Upserted)
		require.Len(t, ufe.Failed, 2)
		assert.Equal(t, 0, ufe.Failed[0].Batch)
		assert.Equal(t, 2, ufe.Failed[1].Batch)
	})

	t.Run("取消后完成在途批次并放弃剩余", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		store := &recordingStore{onCall: func(call int) {
			if call == 0 {
				cancel()
			}
		}}
		u := quietUpserter(store)
		u.BatchSize = 10

		res, err := u.Upsert(cctx, makeRecords(30))
		require.ErrorIs(t, err, context.Canceled)
		assert.Len(t, store.calls, 1)
		assert.Equal(t, 10, res.Upserted, "the in-flight batch completes")
	})
}
