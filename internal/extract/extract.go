// Package extract turns uploaded file bytes into plain text for the ingestion pipeline.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	// MaxChars caps extracted text for every format.
	MaxChars = 50000

	maxPDFPages     = 50
	maxSheets       = 10
	maxRowsPerSheet = 500

	fallbackTitle = "Document"
)

// Extraction methods recorded on the ingestion job.
const (
	MethodPDF      = "pdf"
	MethodXLSX     = "xlsx"
	MethodDOCX     = "docx"
	MethodText     = "text"
	MethodFilename = "filename"
)

// ErrExtraction means a recognized format could not be parsed.
var ErrExtraction = errors.New("extraction failed")

// Result is the outcome of extracting text from one file.
type Result struct {
	Text     string
	Method   string
	Fallback bool
}

// Extract reads text from data according to its declared content type and file name.
// Unrecognized formats and documents without readable text take the filename
// fallback branch. A recognized but unparseable file returns ErrExtraction; the
// caller decides whether to fall back. data is never modified.
func Extract(ctx context.Context, data []byte, contentType, fileName string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var (
		text   string
		method string
		err    error
	)
	switch normalizeMimeType(contentType, fileName, data) {
	case mimePDF:
		method = MethodPDF
		text, err = extractPDF(data)
	case mimeXLSX:
		method = MethodXLSX
		text, err = extractXLSX(data)
	case mimeDOCX:
		method = MethodDOCX
		text, err = extractDOCX(data)
	case "text/plain", "text/markdown", "text/csv", "application/json":
		method = MethodText
		text = decodeText(data)
	default:
		return Fallback(fileName), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s %q: %v", ErrExtraction, method, fileName, err)
	}

	text = truncate(strings.TrimSpace(text), MaxChars)
	if text == "" {
		return Fallback(fileName), nil
	}
	return Result{Text: text, Method: method}, nil
}

// Fallback derives a weak text proxy from the file name: the stem with
// underscores and dashes turned into spaces, or "Document" when nothing is left.
func Fallback(fileName string) Result {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		stem = fallbackTitle
	}
	return Result{Text: stem, Method: MethodFilename, Fallback: true}
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := reader.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}
	var buf strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(content)
		buf.WriteString("\n")
		if buf.Len() >= MaxChars*utf8.UTFMax {
			break
		}
	}
	return buf.String(), nil
}

func extractXLSX(data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer book.Close()

	var buf strings.Builder
	sheets := book.GetSheetList()
	if len(sheets) > maxSheets {
		sheets = sheets[:maxSheets]
	}
	for _, sheet := range sheets {
		rows, err := book.Rows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %q: %w", sheet, err)
		}
		count := 0
		for rows.Next() && count < maxRowsPerSheet {
			count++
			cols, err := rows.Columns()
			if err != nil {
				rows.Close()
				return "", fmt.Errorf("sheet %q row %d: %w", sheet, count, err)
			}
			line := strings.Join(strings.Fields(strings.Join(cols, " ")), " ")
			if line == "" {
				continue
			}
			buf.WriteString(line)
			buf.WriteString("\n")
		}
		rows.Close()
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return stripDocxXML(rc)
}

func stripDocxXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return buf.String(), nil
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "�")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

var extensionTypes = map[string]string{
	".pdf":  mimePDF,
	".xlsx": mimeXLSX,
	".docx": mimeDOCX,
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
}

func normalizeMimeType(contentType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext := strings.ToLower(filepath.Ext(fileName))

	switch clean {
	case "application/zip":
		if mapped := mapOOXMLFromZip(data); mapped != "" {
			return mapped
		}
		if mapped, ok := extensionTypes[ext]; ok && (mapped == mimeDOCX || mapped == mimeXLSX) {
			return mapped
		}
		return clean
	case "", "application/octet-stream", "binary/octet-stream":
		if mapped, ok := extensionTypes[ext]; ok {
			return mapped
		}
		return clean
	case "text/x-markdown":
		return "text/markdown"
	case "application/csv", "text/comma-separated-values":
		return "text/csv"
	}
	// Sniffed plain text for a known structured extension keeps the extension.
	if clean == "text/plain" {
		if mapped, ok := extensionTypes[ext]; ok && strings.HasPrefix(mapped, "text/") {
			return mapped
		}
	}
	return clean
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return mimeDOCX
		case "xl/workbook.xml":
			return mimeXLSX
		case "ppt/presentation.xml":
			return mimePPTX
		}
	}
	return ""
}
