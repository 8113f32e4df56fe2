package omm

// PayloadKind names the container type of a payload.
type PayloadKind string

const (
	KindFieldList   PayloadKind = "fieldList"
	KindElementList PayloadKind = "elementList"
	KindMap         PayloadKind = "map"
	KindSeries      PayloadKind = "series"
	KindFilterList  PayloadKind = "filterList"
)

// Payload describes the data carried by a response. Only the shape is modelled here.
type Payload interface {
	Kind() PayloadKind
}

// Element is a named value inside an ElementList.
type Element struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ElementList is an ordered list of named values.
type ElementList []Element

var _ Payload = ElementList(nil)

func (l ElementList) Kind() PayloadKind { return KindElementList }

// Get returns the value of the first element called name.
func (l ElementList) Get(name string) (any, bool) {
	for _, e := range l {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// GetString returns the named element as a string.
func (l ElementList) GetString(name string) (string, bool) {
	v, ok := l.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetUint returns the named element as an unsigned integer. JSON numbers decode as float64,
// so those are accepted too.
func (l ElementList) GetUint(name string) (uint64, bool) {
	v, ok := l.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case uint:
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}

// Set replaces the value of name in place, or appends it.
func (l ElementList) Set(name string, value any) ElementList {
	for i := range l {
		if l[i].Name == name {
			l[i].Value = value
			return l
		}
	}
	return append(l, Element{Name: name, Value: value})
}

// Clone returns a copy that does not share the backing array.
func (l ElementList) Clone() ElementList {
	if l == nil {
		return nil
	}
	c := make(ElementList, len(l))
	copy(c, l)
	return c
}

// FieldEntry is one field of a FieldList. Name is informational.
type FieldEntry struct {
	FID   int16  `json:"fid"`
	Name  string `json:"name,omitempty"`
	Value any    `json:"value"`
}

// FieldList is the payload of instrument refreshes and updates.
type FieldList struct {
	Entries []FieldEntry
}

var _ Payload = (*FieldList)(nil)

func (f *FieldList) Kind() PayloadKind { return KindFieldList }

// Add appends a field entry.
func (f *FieldList) Add(fid int16, name string, value any) {
	f.Entries = append(f.Entries, FieldEntry{FID: fid, Name: name, Value: value})
}

// MapEntry is one keyed entry of a Map.
type MapEntry struct {
	Action string
	Key    any
	Value  Payload
}

// Map is a keyed container, used by the directory.
type Map struct {
	Summary Payload
	Entries []MapEntry
}

var _ Payload = (*Map)(nil)

func (m *Map) Kind() PayloadKind { return KindMap }

// Series is an ordered container of uniform entries, used by dictionaries.
type Series struct {
	Summary ElementList
	Entries []Payload
}

var _ Payload = (*Series)(nil)

func (s *Series) Kind() PayloadKind { return KindSeries }

// FilterEntry is one filter-id section of a FilterList.
type FilterEntry struct {
	ID     uint32
	Action string
	Data   ElementList
}

// FilterList groups the sections of an entity selected by a request filter.
type FilterList struct {
	Entries []FilterEntry
}

var _ Payload = (*FilterList)(nil)

func (f *FilterList) Kind() PayloadKind { return KindFilterList }

// IDs returns the filter ids present, in order.
func (f *FilterList) IDs() []uint32 {
	ids := make([]uint32, 0, len(f.Entries))
	for _, e := range f.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}
