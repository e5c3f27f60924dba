package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"campus-rag-go/pkg/log"
)

// extractDOCX reads word/document.xml out of the archive and concatenates
// paragraph text in document order, one paragraph per line.
func extractDOCX(data []byte) string {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warnf("failed to open docx archive: %v", err)
		return ""
	}

	var docFile *zip.File
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return ""
	}

	rc, err := docFile.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	var paragraphs []string
	var current strings.Builder
	inText := false

	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("failed to decode docx xml: %v", err)
			return ""
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	return strings.Join(paragraphs, "\n")
}

// extractXML parses the document and serializes the root element back to
// text, keeping tags and structure visible to the chunker.
func extractXML(data []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var out bytes.Buffer
	encoder := xml.NewEncoder(&out)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("failed to parse xml: %v", err)
			return ""
		}
		if err := encoder.EncodeToken(tok); err != nil {
			return ""
		}
	}
	if err := encoder.Flush(); err != nil {
		return ""
	}
	return out.String()
}
