package presentation

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/csvsource/internal/datasource"
)

// RowDTO is a result row whose keys serialize in the requested attribute
// order rather than map order.
type RowDTO struct {
	keys   []string
	values datasource.Row
}

// MarshalJSON writes the row as an object with keys in attribute order.
func (r RowDTO) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML returns a mapping node with keys in attribute order.
func (r RowDTO) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range r.keys {
		var value yaml.Node
		if err := value.Encode(r.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&value,
		)
	}
	return node, nil
}

// ResultDTO is the printed form of a datasource.ResultSet.
type ResultDTO struct {
	TotalCount *int     `json:"totalCount" yaml:"totalCount"`
	Data       []RowDTO `json:"data" yaml:"data"`
}

// FromResultSet orders every row of rs by attributes.
func FromResultSet(rs *datasource.ResultSet, attributes []string) ResultDTO {
	dto := ResultDTO{TotalCount: rs.TotalCount, Data: make([]RowDTO, len(rs.Data))}
	for i, row := range rs.Data {
		dto.Data[i] = RowDTO{keys: attributes, values: row}
	}
	return dto
}
