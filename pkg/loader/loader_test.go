package loader

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeDOCX(t *testing.T, name, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLoad_Unsupported(t *testing.T) {
	l := New()
	ctx := context.Background()

	t.Run("txt 扩展名", func(t *testing.T) {
		path := writeFile(t, "notes.txt", "hello")
		_, err := l.Load(ctx, path)

		var ue *types.UnsupportedFileTypeError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, ".txt", ue.Ext)
	})

	t.Run("无扩展名", func(t *testing.T) {
		path := writeFile(t, "README", "hello")
		_, err := l.Load(ctx, path)

		var ue *types.UnsupportedFileTypeError
		require.ErrorAs(t, err, &ue)
		assert.Empty(t, ue.Ext)
	})

	assert.False(t, l.Supports("a.txt"))
	assert.True(t, l.Supports("A.PDF"))
	assert.ElementsMatch(t, []string{".pdf", ".docx", ".csv"}, l.Extensions())
}

func TestLoad_CSV(t *testing.T) {
	l := New()
	path := writeFile(t, "courses.csv",
		"course_title,url,level\n"+
			"Go in Action,https://udemy.com/go,Beginner\n"+
			"\"Kubernetes, the hard way\",https://udemy.com/k8s,Advanced\n")

	docs, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "course_title: Go in Action\nurl: https://udemy.com/go\nlevel: Beginner", docs[0].Text)
	assert.Equal(t, "course_title: Kubernetes, the hard way\nurl: https://udemy.com/k8s\nlevel: Advanced", docs[1].Text)
	assert.Equal(t, path, docs[0].Source())
	assert.Equal(t, 1, docs[1].Metadata["row"])
	assert.NotEqual(t, docs[0].ID, docs[1].ID)

	assert.Equal(t, docs[0].Text+"\n"+docs[1].Text, JoinText(docs))
}

func TestLoad_CSVEmpty(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	_, err := New().Load(context.Background(), path)

	var pe *types.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Path)
}

func TestLoad_DOCX(t *testing.T) {
	const body = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Senior </w:t></w:r><w:r><w:t>Backend Engineer</w:t></w:r></w:p>
    <w:p><w:r><w:t>Go</w:t><w:tab/><w:t>PostgreSQL</w:t></w:r></w:p>
  </w:body>
</w:document>`
	path := writeDOCX(t, "CV.DOCX", body)

	docs, err := New().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Jane Doe\nSenior Backend Engineer\nGo\tPostgreSQL", docs[0].Text)
}

func TestLoad_DOCXBroken(t *testing.T) {
	t.Run("不是 zip", func(t *testing.T) {
		path := writeFile(t, "cv.docx", "plain text pretending to be docx")
		_, err := New().Load(context.Background(), path)
		var pe *types.ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("缺少正文", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cv.docx")
		f, err := os.Create(path)
		require.NoError(t, err)
		zw := zip.NewWriter(f)
		_, err = zw.Create("word/styles.xml")
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		require.NoError(t, f.Close())

		_, err = New().Load(context.Background(), path)
		var pe *types.ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Error(), "word/document.xml")
	})
}

func TestLoad_CorruptPDF(t *testing.T) {
	path := writeFile(t, "cv.pdf", "this is not a pdf at all")
	_, err := New().Load(context.Background(), path)

	var pe *types.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Path)
}

func TestRegister(t *testing.T) {
	l := New()
	l.Register("PDF", ParserFunc(func(_ context.Context, path string) ([]types.Document, error) {
		return []types.Document{{Text: strings.ToUpper(filepath.Base(path))}}, nil
	}))
	l.Register(".md", ParserFunc(func(context.Context, string) ([]types.Document, error) {
		return nil, errors.New("boom")
	}))

	docs, err := l.Load(context.Background(), "/tmp/x/cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, "CV.PDF", docs[0].Text)
	assert.NotEmpty(t, docs[0].ID)
	assert.Equal(t, "/tmp/x/cv.pdf", docs[0].Source())

	_, err = l.Load(context.Background(), "notes.md")
	var pe *types.ParseError
	require.ErrorAs(t, err, &pe)
	assert.EqualError(t, errors.Unwrap(err), "boom")
}
