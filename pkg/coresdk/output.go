package coresdk

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func writeJSON(data interface{}, out io.Writer) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing to JSON: %w", err)
	}
	_, err = out.Write(b)
	return err
}

func writeYAML(data interface{}, out io.Writer) error {
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("serializing to YAML: %w", err)
	}
	_, err = out.Write(b)
	return err
}
