package rag

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"deepsearch/src/infrastructure/log"
)

var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".txt":  {},
	".md":   {},
	".docx": {},
}

// SupportedExtension reports whether the file's extension is one the
// extractor understands.
func SupportedExtension(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ExtractText reads a file and returns its full text content, dispatching on
// the file extension. Unknown extensions fail with ErrUnsupportedFormat.
func ExtractText(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		return extractPlainText(path)
	case ".pdf":
		return extractPDFText(path)
	case ".docx":
		return extractDOCXText(path), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// extractPlainText reads a text or markdown file as UTF-8 and falls back to
// Windows-1251 when the content does not decode.
func extractPlainText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		log.Error(err, "legacy decode failed, keeping raw bytes", "path", path)
		return string(raw), nil
	}
	return string(decoded), nil
}

// extractPDFText concatenates the extractable text of every page. A page the
// library cannot handle contributes no text.
func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		text, err := pdfPageText(r, i)
		if err != nil {
			log.Error(err, "skipping unextractable pdf page", "path", path, "page", i)
			continue
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// pdfPageText extracts one page. The pdf library panics on some malformed
// font tables, so the recover turns that into a per-page error.
func pdfPageText(r *pdf.Reader, page int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page extraction panicked: %v", rec)
		}
	}()

	p := r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// extractDOCXText pulls the paragraph text out of word/document.xml in
// document order. Any failure yields an empty string, never an error.
func extractDOCXText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error(err, "failed to read docx file", "path", path)
		return ""
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Error(err, "failed to open docx archive", "path", path)
		return ""
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, "word/document.xml") {
			docFile = f
			break
		}
	}
	if docFile == nil {
		log.Error(fmt.Errorf("word/document.xml not found"), "docx has no document part", "path", path)
		return ""
	}

	rc, err := docFile.Open()
	if err != nil {
		log.Error(err, "failed to open docx document part", "path", path)
		return ""
	}
	defer rc.Close()

	return docxParagraphText(rc)
}

// docxParagraphText walks the WordprocessingML token stream, collecting run
// text and emitting a newline at the end of each paragraph.
func docxParagraphText(r io.Reader) string {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err == nil {
					sb.WriteString(text)
				}
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}
