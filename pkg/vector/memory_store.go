package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

// MemoryStore 内存向量存储, 用于开发与测试。
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[string]map[string]types.UpsertRecord
	order  map[string][]string
}

// NewMemoryStore 创建内存向量存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		spaces: make(map[string]map[string]types.UpsertRecord),
		order:  make(map[string][]string),
	}
}

// Upsert 插入或覆盖记录
func (s *MemoryStore) Upsert(_ context.Context, namespace string, records []types.UpsertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	space, ok := s.spaces[namespace]
	if !ok {
		space = make(map[string]types.UpsertRecord)
		s.spaces[namespace] = space
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if _, exists := space[r.ID]; !exists {
			s.order[namespace] = append(s.order[namespace], r.ID)
		}
		space[r.ID] = r
	}
	return nil
}

// Get 按 ID 取回记录
func (s *MemoryStore) Get(namespace, id string) (types.UpsertRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.spaces[namespace][id]
	return r, ok
}

// Count 返回命名空间内的记录数
func (s *MemoryStore) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.spaces[namespace])
}

// IDs 按首次写入顺序返回记录 ID
func (s *MemoryStore) IDs(namespace string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order[namespace]...)
}

// Query 余弦相似度检索
func (s *MemoryStore) Query(_ context.Context, q Query) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var hits []Hit
	for _, id := range s.order[q.Namespace] {
		r := s.spaces[q.Namespace][id]
		if !matchFilter(r.Metadata, q.Filter) {
			continue
		}
		score := cosineSimilarity(q.Vector, r.Values)
		if math.IsNaN(score) {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Metadata: r.Metadata})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Close 对内存存储无实际作用。
func (s *MemoryStore) Close() error {
	return nil
}

func matchFilter(meta, filter map[string]interface{}) bool {
	for k, want := range filter {
		if got, ok := meta[k]; !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
