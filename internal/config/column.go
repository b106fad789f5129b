package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Column is one entry of a widget's column definitions.
type Column struct {
	Name             string `yaml:"-"`
	Label            string `yaml:"label"`
	Type             string `yaml:"type"`
	Searchable       bool   `yaml:"searchable"`
	Invisible        bool   `yaml:"invisible"`
	Relation         string `yaml:"relation"`
	ValueFrom        string `yaml:"valueFrom"`
	Select           string `yaml:"select"`
	UseRelationCount bool   `yaml:"useRelationCount"`
}

// ColumnList keeps columns in document order. In YAML it is a mapping from
// column name to definition; a scalar value is taken as the label.
type ColumnList []Column

func (l *ColumnList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: columns must be a mapping", node.Line)
	}

	cols := make(ColumnList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var col Column
		switch value.Kind {
		case yaml.ScalarNode:
			col.Label = value.Value
		case yaml.MappingNode:
			if err := value.Decode(&col); err != nil {
				return fmt.Errorf("column %q: %w", key.Value, err)
			}
		default:
			return fmt.Errorf("line %d: column %q must be a mapping or a label", value.Line, key.Value)
		}
		col.Name = key.Value
		cols = append(cols, col)
	}
	*l = cols
	return nil
}

// Get returns the column called name.
func (l ColumnList) Get(name string) (Column, bool) {
	for _, c := range l {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
