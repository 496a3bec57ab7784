package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

const docxBody = "word/document.xml"

// parseDOCX 读取 OOXML 正文, 每个段落一行
func parseDOCX(_ context.Context, path string) ([]types.Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &types.ParseError{Path: path, Err: fmt.Errorf("open docx: %w", err)}
	}
	defer zr.Close()

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, &types.ParseError{Path: path, Err: errors.New("docx has no " + docxBody)}
	}

	rc, err := body.Open()
	if err != nil {
		return nil, &types.ParseError{Path: path, Err: err}
	}
	defer rc.Close()

	text, err := docxText(rc)
	if err != nil {
		return nil, &types.ParseError{Path: path, Err: err}
	}
	return []types.Document{{Text: text}}, nil
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		b      strings.Builder
		inText bool
		paras  int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if paras > 0 {
					b.WriteByte('\n')
				}
				paras++
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
