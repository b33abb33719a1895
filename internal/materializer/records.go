package materializer

import (
	"fmt"
	"sort"
	"strings"

	"market-gateway/internal/domain/outgoing"
	gateway_errors "market-gateway/pkg/errors"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// decodeRecord parses a message record into an object, keeping numbers as
// their original literal.
func decodeRecord(msg outgoing.Message) (map[string]interface{}, error) {
	var fields map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(string(msg.MessageRecord)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: record of message %s: %v", gateway_errors.ErrMaterialization, msg.ID, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: record of message %s is not an object", gateway_errors.ErrMaterialization, msg.ID)
	}
	return fields, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validName reports whether s can be used as an XML element local name.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
