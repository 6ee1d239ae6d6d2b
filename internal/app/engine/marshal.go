package engine

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"
)

// MarshalValue serializes a Value tree to JSON, preserving mapping insertion
// order. encoding/json sorts map keys, so mappings are written by hand here.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Decimal:
		buf.WriteString(val.D.String())
	case String:
		return appendJSONString(buf, string(val))
	case Bytes:
		return appendJSONString(buf, base64.StdEncoding.EncodeToString(val))
	case Sequence:
		return appendElements(buf, val)
	case Set:
		return appendElements(buf, canonicalOrder(val))
	case *Mapping:
		return appendMapping(buf, val)
	case Temporal:
		return appendJSONString(buf, formatTemporal(val))
	case *Record:
		return appendMapping(buf, val.Fields)
	}
	return nil
}

func appendElements(buf *bytes.Buffer, elems []Value) error {
	buf.WriteByte('[')
	for i, item := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func appendMapping(buf *bytes.Buffer, m *Mapping) error {
	buf.WriteByte('{')
	first := true
	var walkErr error
	m.Entries(func(key, val Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		ck, _ := canonicalKey(key)
		if walkErr = appendJSONString(buf, ck); walkErr != nil {
			return false
		}
		buf.WriteByte(':')
		walkErr = appendValue(buf, val)
		return walkErr == nil
	})
	if walkErr != nil {
		return walkErr
	}
	buf.WriteByte('}')
	return nil
}

func appendJSONString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}
