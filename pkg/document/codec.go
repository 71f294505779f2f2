package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// dateTag is the single key of the JSON object used to carry a date value,
// e.g. {"$date": "2024-01-02T03:04:05Z"}.
const dateTag = "$date"

// ErrTrailingData indicates bytes after the top-level JSON value.
var ErrTrailingData = errors.New("unexpected data after top-level value")

// Load reads a JSON or YAML file (by extension) into a new Document.
func Load(path string) (*Document, error) {
	v, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(v)
}

// ReadFile decodes a JSON or YAML file into a document value.
func ReadFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	var v any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		v, err = DecodeYAML(data)
	default:
		v, err = DecodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return v, nil
}

// DecodeJSON decodes JSON into a document value, keeping object key order.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Object{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key: unexpected token %v", kt)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				obj = append(obj, Field{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			if len(obj) == 1 && obj[0].Key == dateTag {
				if s, ok := obj[0].Value.(string); ok {
					if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
						return ts, nil
					}
				}
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", t, err)
		}
		return f, nil
	case float64, string, bool, nil:
		return t, nil
	}
	return nil, fmt.Errorf("unexpected token %T", tok)
}

// DecodeYAML decodes YAML into a document value, keeping mapping key order.
// Timestamps become dates.
func DecodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return convertYAML(&doc)
}

func convertYAML(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return convertYAML(n.Content[0])
	case yaml.AliasNode:
		return convertYAML(n.Alias)
	case yaml.MappingNode:
		obj := make(Object, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			val, err := convertYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj = append(obj, Field{Key: n.Content[i].Value, Value: val})
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := convertYAML(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

// EncodeJSON renders an element as JSON. A non-empty indent pretty-prints.
func EncodeJSON(e *Element, indent string) ([]byte, error) {
	raw, err := EncodeValue(e.Interface())
	if err != nil {
		return nil, err
	}
	if indent == "" {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeValue renders a document value as compact JSON, keeping Object key
// order and tagging dates.
func EncodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case Object:
		buf.WriteByte('{')
		for i, f := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, f.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case map[string]any:
		return encodeValue(buf, sortedFields(val))
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case string:
		return encodeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case time.Time:
		buf.WriteString(`{"` + dateTag + `":`)
		if err := encodeString(buf, val.Format(time.RFC3339Nano)); err != nil {
			return err
		}
		buf.WriteByte('}')
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("number %v: %w", val, ErrUnsupportedValue)
		}
		buf.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case *Element:
		return encodeValue(buf, val.Interface())
	default:
		return fmt.Errorf("%T: %w", v, ErrUnsupportedValue)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
