package types

// Document 表示从一个上传文件中提取出的一段纯文本。
// CSV 文件会按行拆成多条 Document, PDF/DOCX 则整体为一条。
type Document struct {
	// ID 文档唯一标识, 同时作为向量记录 ID 的前缀
	ID string `json:"id"`

	// Text 提取出的纯文本
	Text string `json:"text"`

	// Metadata 来源信息, 例如 source(文件路径)、row(CSV 行号)
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Source 返回文档来源路径(若存在)
func (d Document) Source() string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata["source"].(string)
	return s
}

// Chunk 文档切分后的一段文本。
// Start/End 为该段在原文中的 rune 偏移, 半开区间 [Start, End)。
type Chunk struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source,omitempty"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// UpsertRecord 写入向量库的一条记录
type UpsertRecord struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
