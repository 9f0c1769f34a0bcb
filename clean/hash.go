package clean

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/kartik4091/pdfsanitize/ir/raw"
)

// contentHash digests an object's semantically relevant bytes. The
// object's own Name entry is identity, not content, so two resources
// that differ only in their Name still hash equal and can be merged.
func contentHash(obj raw.Object) string {
	h := sha256.New()
	writeHash(h, obj, true)
	return hex.EncodeToString(h.Sum(nil))
}

func writeHash(h interface{ Write([]byte) (int, error) }, obj raw.Object, topLevel bool) {
	if obj == nil {
		fmt.Fprint(h, "nil")
		return
	}
	fmt.Fprint(h, obj.Type(), ":")
	switch t := obj.(type) {
	case raw.Name:
		fmt.Fprint(h, t.Value())
	case raw.Number:
		if t.IsInteger() {
			fmt.Fprint(h, t.Int())
		} else {
			fmt.Fprint(h, t.Float())
		}
	case raw.Boolean:
		fmt.Fprint(h, t.Value())
	case raw.String:
		h.Write(t.Value())
	case raw.Reference:
		fmt.Fprintf(h, "%d %d R", t.Ref().Num, t.Ref().Gen)
	case raw.Array:
		fmt.Fprint(h, "[")
		for i := 0; i < t.Len(); i++ {
			v, _ := t.Get(i)
			writeHash(h, v, false)
			fmt.Fprint(h, ",")
		}
		fmt.Fprint(h, "]")
	case raw.Stream:
		writeHashDict(h, t.Dictionary(), topLevel)
		h.Write(t.RawData())
	case raw.Dictionary:
		writeHashDict(h, t, topLevel)
	case raw.Null:
		fmt.Fprint(h, "null")
	}
}

func writeHashDict(h interface{ Write([]byte) (int, error) }, dict raw.Dictionary, topLevel bool) {
	fmt.Fprint(h, "<<")
	keys := dict.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Value() < keys[j].Value() })
	for _, k := range keys {
		if topLevel && k.Value() == "Name" {
			continue
		}
		fmt.Fprint(h, k.Value())
		v, _ := dict.Get(k)
		writeHash(h, v, false)
	}
	fmt.Fprint(h, ">>")
}
