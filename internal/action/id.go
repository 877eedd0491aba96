package action

import (
	"encoding/json"
	"strconv"
)

// identityKeyLen bounds the discriminating field used for id generation.
const identityKeyLen = 50

// GenerateID computes a stable action id from the type and its discriminating
// field. It is a pure function of (type, params): re-processing the same
// logical action yields the same id, so a model re-suggesting an action across
// turns does not produce duplicates.
func GenerateID(typ string, params map[string]any, def *Definition) string {
	var key string
	if def != nil && def.IdentityKey != nil {
		key = def.IdentityKey(params)
	}
	if key == "" {
		// json.Marshal sorts map keys, so the fallback is deterministic too.
		data, err := json.Marshal(params)
		if err == nil {
			key = truncate(string(data), identityKeyLen)
		}
	}
	return "act_" + hash32(typ+":"+key)
}

// hash32 is a 32-bit rolling hash rendered in base-36.
func hash32(s string) string {
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
