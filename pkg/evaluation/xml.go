package evaluation

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// ParseXML reads an evaluation from its native XML form.
func ParseXML(r io.Reader) (*Evaluation, error) {
	var d evalDoc
	if err := xml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecParse, err)
	}
	return d.toEvaluation()
}

// ParseXMLFile reads an evaluation from an XML file.
func ParseXMLFile(path string) (*Evaluation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseXML(f)
}

// WriteXML serializes the evaluation back to XML. Parsing the output
// yields an equivalent evaluation.
func (e *Evaluation) WriteXML(w io.Writer) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(e.toDoc()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
