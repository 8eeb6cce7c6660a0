package lua

import (
	"math"
)

type table struct {
	array     []value
	hash      map[value]value
	metaTable *table
	flags     byte
}

func newTable() *table                     { return &table{hash: make(map[value]value)} }
func (t *table) invalidateTagMethodCache() { t.flags = 0 }
func (t *table) atString(k string) value   { return t.hash[k] }

func newTableWithSize(arraySize, hashSize int) *table {
	t := new(table)
	if arraySize > 0 {
		t.array = make([]value, arraySize)
	}
	if hashSize > 0 {
		t.hash = make(map[value]value, hashSize)
	} else {
		t.hash = make(map[value]value)
	}
	return t
}

func (l *State) fastTagMethod(table *table, event tm) value {
	if table == nil || table.flags&1<<event != 0 {
		return nil
	}
	return table.tagMethod(event, l.global.tagMethodNames[event])
}

func (t *table) extendArray(last int) { t.array = append(t.array, make([]value, last-len(t.array))...) }

func (t *table) atInt(k int) value {
	if 0 < k && k <= len(t.array) {
		return t.array[k-1]
	}
	return t.hash[int64(k)]
}

func (t *table) putAtInt(k int, v value) {
	if 0 < k && k <= len(t.array) {
		t.array[k-1] = v
	} else if k == len(t.array)+1 && v != nil {
		delete(t.hash, int64(k))
		t.array = append(t.array, v)
		for next := int64(k + 1); t.hash[next] != nil; next++ { // migrate the keys that now follow on
			t.array = append(t.array, t.hash[next])
			delete(t.hash, next)
		}
	} else {
		t.hash[int64(k)] = v
	}
}

// normalizeKey maps a float key with an exact integer value onto the int64
// key that addresses the same slot, so t[1] and t[1.0] coincide (§3.4.3 of
// the 5.3 manual still mandates this after introducing integers/floats).
func normalizeKey(k value) value {
	if f, ok := k.(float64); ok {
		if i, ok := exactInt(f); ok {
			return i
		}
	}
	return k
}

func (t *table) at(k value) value {
	switch k := k.(type) {
	case nil:
		return nil
	case int64:
		return t.atInt(int(k))
	case float64:
		if i, ok := exactInt(k); ok {
			return t.atInt(int(i))
		}
	case string:
		return t.atString(k)
	}
	return t.hash[k]
}

func (t *table) put(l *State, k, v value) {
	switch k := k.(type) {
	case nil:
		l.runtimeError("table index is nil")
	case int64:
		t.putAtInt(int(k), v)
	case float64:
		if i, ok := exactInt(k); ok {
			t.putAtInt(int(i), v)
		} else if math.IsNaN(k) {
			l.runtimeError("table index is NaN")
		} else {
			t.hash[k] = v
		}
	case string:
		t.hash[k] = v
	default:
		t.hash[k] = v
	}
}

// tryPut stores v at k only when k already names a live slot (array index in
// range, or a present hash entry); it reports whether it did so. Callers use
// the false case to decide whether a __newindex metamethod applies.
func (t *table) tryPut(l *State, k, v value) bool {
	switch key := k.(type) {
	case int64:
		if i := int(key); 0 < i && i <= len(t.array) {
			t.array[i-1] = v
			return true
		}
	case float64:
		if i, ok := exactInt(key); ok {
			return t.tryPut(l, i, v)
		}
	}
	nk := normalizeKey(k)
	if _, ok := t.hash[nk]; ok {
		t.hash[nk] = v
		return true
	}
	return false
}

func (t *table) unboundSearch(j int) int {
	i := j
	for j++; nil != t.atInt(j); {
		i = j
		if j *= 2; j < 0 {
			for i = 1; nil != t.atInt(i); i++ {
			}
			return i - 1
		}
	}
	for j-i > 1 {
		m := (i + j) / 2
		if nil == t.atInt(m) {
			j = m
		} else {
			i = m
		}
	}
	return i
}

func (t *table) length() int {
	j := len(t.array)
	if j > 0 && t.array[j-1] == nil {
		i := 0
		for j-i > 1 {
			m := (i + j) / 2
			if t.array[m-1] == nil {
				j = m
			} else {
				i = m
			}
		}
		return i
	} else if t.hash == nil {
		return j
	}
	return t.unboundSearch(j)
}

// arrayIndex reports the 1-based array slot k addresses, or -1 if k isn't a
// number with an exact integer value.
func arrayIndex(k value) int {
	switch n := k.(type) {
	case int64:
		return int(n)
	case float64:
		if i, ok := exactInt(n); ok {
			return int(i)
		}
	}
	return -1
}

func (l *State) next(t *table, key int) bool {
	i, k := 0, l.stack[key]
	if k == nil { // first iteration
	} else if i = arrayIndex(k); 0 < i && i <= len(t.array) {
	} else if _, ok := t.hash[normalizeKey(k)]; !ok {
		l.runtimeError("invalid key to 'next'") // key not found
	} else {
		i = len(t.array)
	}
	for ; i < len(t.array); i++ {
		if t.array[i] != nil {
			l.stack[key] = int64(i + 1)
			l.stack[key+1] = t.array[i]
			return true
		}
	}
	found := k == nil
	for hk, v := range t.hash {
		if found {
			if v != nil {
				l.stack[key] = hk
				l.stack[key+1] = v
				return true
			}
		} else if l.equalObjects(hk, k) {
			found = true
		}
	}
	return false // no more elements
}
