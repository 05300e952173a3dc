package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

const (
	elementRemoteConstant        = "remote"
	elementDefaultConstant       = "default"
	elementProjectConstant       = "project"
	elementIncludeConstant       = "include"
	elementRemoveProjectConstant = "remove-project"

	attributeNameConstant   = "name"
	attributeFetchConstant  = "fetch"
	attributePathConstant   = "path"
	attributeRemoteConstant = "remote"

	trailingTextErrorTemplateConstant    = "unexpected text %q after </manifest>"
	trailingElementErrorTemplateConstant = "unexpected <%s> after </manifest>"
	trailingTokenErrorTemplateConstant   = "unexpected %T after </manifest>"
)

// manifestDocument keeps child elements in document order so includes expand in place.
type manifestDocument struct {
	XMLName  xml.Name          `xml:"manifest"`
	Elements []manifestElement `xml:",any"`
}

type manifestElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr `xml:",any,attr"`
}

func (element manifestElement) attribute(name string) (string, bool) {
	for _, attribute := range element.Attributes {
		if attribute.Name.Local == name {
			return attribute.Value, true
		}
	}
	return "", false
}

func decodeDocument(contents []byte) (manifestDocument, error) {
	var document manifestDocument
	decoder := xml.NewDecoder(bytes.NewReader(contents))
	if decodeError := decoder.Decode(&document); decodeError != nil {
		return manifestDocument{}, decodeError
	}
	if trailingError := rejectTrailingContent(decoder); trailingError != nil {
		return manifestDocument{}, trailingError
	}
	return document, nil
}

// rejectTrailingContent allows only whitespace, comments, and processing
// instructions after the root element.
func rejectTrailingContent(decoder *xml.Decoder) error {
	for {
		token, tokenError := decoder.Token()
		if errors.Is(tokenError, io.EOF) {
			return nil
		}
		if tokenError != nil {
			return tokenError
		}
		switch typedToken := token.(type) {
		case xml.Comment, xml.ProcInst:
			continue
		case xml.CharData:
			if len(bytes.TrimSpace(typedToken)) == 0 {
				continue
			}
			return fmt.Errorf(trailingTextErrorTemplateConstant, bytes.TrimSpace(typedToken))
		case xml.StartElement:
			return fmt.Errorf(trailingElementErrorTemplateConstant, typedToken.Name.Local)
		default:
			return fmt.Errorf(trailingTokenErrorTemplateConstant, token)
		}
	}
}
