package raw

// Typed dictionary accessors. These tolerate nil dictionaries and
// wrong-typed entries, returning the zero value and false instead.

// DictName returns the string value of a name entry.
func DictName(dict Dictionary, key string) (string, bool) {
	if dict == nil {
		return "", false
	}
	v, ok := dict.Get(NameLiteral(key))
	if !ok {
		return "", false
	}
	n, ok := v.(Name)
	if !ok {
		return "", false
	}
	return n.Value(), true
}

// DictString returns the byte value of a string entry.
func DictString(dict Dictionary, key string) ([]byte, bool) {
	if dict == nil {
		return nil, false
	}
	v, ok := dict.Get(NameLiteral(key))
	if !ok {
		return nil, false
	}
	s, ok := v.(String)
	if !ok {
		return nil, false
	}
	return s.Value(), true
}

// DictInt returns the integer value of a number entry.
func DictInt(dict Dictionary, key string) (int64, bool) {
	if dict == nil {
		return 0, false
	}
	v, ok := dict.Get(NameLiteral(key))
	if !ok {
		return 0, false
	}
	n, ok := v.(Number)
	if !ok {
		return 0, false
	}
	return n.Int(), true
}

// DictDict returns a nested dictionary entry, following a reference
// through doc when one is given.
func DictDict(doc *Document, dict Dictionary, key string) (Dictionary, bool) {
	if dict == nil {
		return nil, false
	}
	v, ok := dict.Get(NameLiteral(key))
	if !ok {
		return nil, false
	}
	if doc != nil {
		if resolved, ok := doc.Resolve(v); ok {
			v = resolved
		}
	}
	d, ok := v.(Dictionary)
	return d, ok
}

// StreamDict returns the dictionary of obj when obj is a stream, or
// obj itself when it already is a dictionary.
func StreamDict(obj Object) (Dictionary, bool) {
	switch t := obj.(type) {
	case Stream:
		return t.Dictionary(), true
	case Dictionary:
		return t, true
	default:
		return nil, false
	}
}

// IsMetadataStream reports whether obj is an XMP metadata stream
// (Type=Metadata, Subtype=XML).
func IsMetadataStream(obj Object) bool {
	s, ok := obj.(Stream)
	if !ok {
		return false
	}
	typ, _ := DictName(s.Dictionary(), "Type")
	sub, _ := DictName(s.Dictionary(), "Subtype")
	return typ == "Metadata" && sub == "XML"
}
