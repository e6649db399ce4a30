package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// extractDOCX reads word/document.xml out of the zip container and strips
// the WordprocessingML markup. DOCX has no explicit page count, so
// PageCount stays nil rather than being guessed.
func extractDOCX(data []byte) (*Result, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{FileType: "docx", Err: err}
	}

	var docXML []byte
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, &ExtractionError{FileType: "docx", Err: err}
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, &ExtractionError{FileType: "docx", Err: err}
			}
			break
		}
	}
	if docXML == nil {
		return nil, &ExtractionError{FileType: "docx", Err: errors.New("word/document.xml not found in archive")}
	}

	text, err := wordprocessingText(docXML)
	if err != nil {
		return nil, &ExtractionError{FileType: "docx", Err: err}
	}
	return &Result{Text: text}, nil
}

// wordprocessingText walks the XML token stream collecting run text.
// Paragraphs become newlines, explicit breaks and tabs are preserved.
func wordprocessingText(docXML []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))

	var sb strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br":
				sb.WriteByte('\n')
			case "tab":
				sb.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}
