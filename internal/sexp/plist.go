package sexp

import "math"

// Get returns the value following keyword key in plist. The list is scanned
// linearly, so the first occurrence of a duplicated key wins.
func Get(plist Value, key string) (Value, bool) {
	if plist.Kind != KindList {
		return Value{}, false
	}
	items := plist.List
	for i := 0; i < len(items); i++ {
		if items[i].Kind == KindKeyword && items[i].Str == key {
			if i+1 < len(items) {
				return items[i+1], true
			}
			return Value{}, false
		}
	}
	return Value{}, false
}

// Has reports whether plist contains key with a following value.
func Has(plist Value, key string) bool {
	_, ok := Get(plist, key)
	return ok
}

// GetString returns the string stored under key.
func GetString(plist Value, key string) (string, bool) {
	v, ok := Get(plist, key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetUint returns the non-negative integer stored under key.
func GetUint(plist Value, key string) (uint32, bool) {
	v, ok := Get(plist, key)
	if !ok {
		return 0, false
	}
	n, ok := v.AsInt()
	if !ok || n < 0 || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// GetBool returns the truth value stored under key. A symbol is true only
// when it is t; any other present value is true unless it is nil. A
// missing key reports ok=false so callers pick their own default.
func GetBool(plist Value, key string) (value bool, ok bool) {
	v, ok := Get(plist, key)
	if !ok {
		return false, false
	}
	if v.Kind == KindSymbol {
		return v.Str == "t", true
	}
	return !v.IsNil(), true
}
