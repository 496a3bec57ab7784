package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

// parseCSV 首行为表头, 之后每行生成一条 Document, 文本为 "列名: 值" 逐行排列
func parseCSV(ctx context.Context, path string) ([]types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.ParseError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &types.ParseError{Path: path, Err: errors.New("csv is empty")}
	}
	if err != nil {
		return nil, &types.ParseError{Path: path, Err: fmt.Errorf("read header: %w", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var docs []types.Document
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &types.ParseError{Path: path, Err: fmt.Errorf("row %d: %w", row+1, err)}
		}

		lines := make([]string, 0, len(header))
		for i, col := range header {
			val := ""
			if i < len(rec) {
				val = strings.TrimSpace(rec[i])
			}
			lines = append(lines, col+": "+val)
		}
		docs = append(docs, types.Document{
			Text:     strings.Join(lines, "\n"),
			Metadata: map[string]interface{}{"row": row},
		})
	}
	return docs, nil
}
