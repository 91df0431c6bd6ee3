package evaluation

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseYAML reads an evaluation from the YAML flavor of the
// evaluation file format.
func ParseYAML(r io.Reader) (*Evaluation, error) {
	var d evalDoc
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpecParse, err)
	}
	return d.toEvaluation()
}

// ParseYAMLFile reads an evaluation from a YAML file.
func ParseYAMLFile(path string) (*Evaluation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseYAML(f)
}

// WriteYAML serializes the evaluation to YAML.
func (e *Evaluation) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(e.toDoc()); err != nil {
		return err
	}
	return enc.Close()
}
