package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

// parsePDF 提取整份 PDF 的纯文本, 不按页拆分
func parsePDF(_ context.Context, path string) (docs []types.Document, err error) {
	// 损坏的文件可能让底层库 panic
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = &types.ParseError{Path: path, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	f, rdr, err := pdf.Open(path)
	if err != nil {
		return nil, &types.ParseError{Path: path, Err: err}
	}
	defer f.Close()

	plain, err := rdr.GetPlainText()
	if err != nil {
		return nil, &types.ParseError{Path: path, Err: fmt.Errorf("read pdf text: %w", err)}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, &types.ParseError{Path: path, Err: fmt.Errorf("read pdf buffer: %w", err)}
	}

	text := strings.TrimSpace(buf.String())
	return []types.Document{{
		Text:     text,
		Metadata: map[string]interface{}{"pages": rdr.NumPage()},
	}}, nil
}
