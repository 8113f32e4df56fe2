// Package dictionary loads field definitions (RDMFieldDictionary) and
// enumerated type tables (enumtype.def) from their text files.
package dictionary

import (
	"errors"
	"fmt"
	"os"
	"sort"
)

var (
	// ErrSyntax is returned for a line that cannot be parsed
	ErrSyntax = errors.New("dictionary syntax error")
	// ErrDuplicateFID is returned when a FID is defined twice
	ErrDuplicateFID = errors.New("duplicate field id")
)

// Field is one field definition.
type Field struct {
	Acronym    string
	DDEAcronym string
	FID        int16
	// Ripple is the FID this field ripples to, 0 when none.
	Ripple     int16
	Type       string
	Length     uint16
	EnumLength uint8
	RWFType    string
	RWFLen     uint16

	rippleTo string
}

// EnumValue is one entry of an enumerated table.
type EnumValue struct {
	Value   uint16
	Display string
	Meaning string
}

// EnumTable is shared by every FID listed in FIDs.
type EnumTable struct {
	FIDs   []int16
	Values []EnumValue
}

// Dictionary holds a field set and its enum tables. It is read only once loaded.
type Dictionary struct {
	fieldTags map[string]string
	enumTags  map[string]string
	fields    map[int16]*Field
	byName    map[string]*Field
	enums     []*EnumTable
	enumByFID map[int16]*EnumTable
}

func New() *Dictionary {
	return &Dictionary{
		fieldTags: make(map[string]string),
		enumTags:  make(map[string]string),
		fields:    make(map[int16]*Field),
		byName:    make(map[string]*Field),
		enumByFID: make(map[int16]*EnumTable),
	}
}

// Load reads the field dictionary at fieldPath and the enum tables at enumPath.
func Load(fieldPath, enumPath string) (*Dictionary, error) {
	d := New()

	ff, err := os.Open(fieldPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open field dictionary: %w", err)
	}
	defer ff.Close()
	if err := d.LoadFields(fieldPath, ff); err != nil {
		return nil, err
	}

	ef, err := os.Open(enumPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open enum tables: %w", err)
	}
	defer ef.Close()
	if err := d.LoadEnums(enumPath, ef); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dictionary) Field(fid int16) (*Field, bool) {
	f, ok := d.fields[fid]
	return f, ok
}

func (d *Dictionary) FieldByName(acronym string) (*Field, bool) {
	f, ok := d.byName[acronym]
	return f, ok
}

func (d *Dictionary) HasField(fid int16) bool {
	_, ok := d.fields[fid]
	return ok
}

// Fields returns every field ordered by FID.
func (d *Dictionary) Fields() []*Field {
	list := make([]*Field, 0, len(d.fields))
	for _, f := range d.fields {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].FID < list[j].FID })
	return list
}

func (d *Dictionary) FieldCount() int { return len(d.fields) }

// EnumTables returns the tables in file order.
func (d *Dictionary) EnumTables() []*EnumTable { return d.enums }

func (d *Dictionary) EnumTable(fid int16) (*EnumTable, bool) {
	t, ok := d.enumByFID[fid]
	return t, ok
}

// FieldVersion is the Version tag of the field dictionary.
func (d *Dictionary) FieldVersion() string { return d.fieldTags["Version"] }

// EnumVersion is the RT_Version tag of the enum file.
func (d *Dictionary) EnumVersion() string { return d.enumTags["RT_Version"] }

// EnumDisplayVersion is the DT_Version tag of the enum file.
func (d *Dictionary) EnumDisplayVersion() string { return d.enumTags["DT_Version"] }

// FieldTag returns a !tag header value of the field dictionary.
func (d *Dictionary) FieldTag(name string) string { return d.fieldTags[name] }
