package dictionary

import (
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/internal/dictionary"
	"github.com/amoylab/mdprovider/pkg/omm"
)

// Element names of dictionary series entries
const (
	elemName       = "NAME"
	elemFID        = "FID"
	elemRippleTo   = "RIPPLETO"
	elemType       = "TYPE"
	elemLength     = "LENGTH"
	elemRWFType    = "RWFTYPE"
	elemRWFLen     = "RWFLEN"
	elemEnumLength = "ENUMLENGTH"
	elemLongName   = "LONGNAME"
	elemFIDs       = "FIDS"
	elemValues     = "VALUE"
	elemDisplays   = "DISPLAY"
	elemMeanings   = "MEANING"
)

// Item is a published dictionary. Items live as long as the process and are
// shared by every stream that asked for them, so Close does nothing.
type Item interface {
	core.StreamItem
	Name() string
	// Summary is the series summary: type, version and entry count.
	Summary() omm.ElementList
	// Entries encodes every entry at the given verbosity.
	Entries(verbosity uint32) []omm.Payload
}

// FieldItem publishes the field definitions.
type FieldItem struct {
	name string
	dict *dictionary.Dictionary
}

var _ Item = (*FieldItem)(nil)

func NewFieldItem(name string, d *dictionary.Dictionary) *FieldItem {
	return &FieldItem{name: name, dict: d}
}

func (f *FieldItem) ModelType() omm.MsgModelType { return omm.ModelDictionary }
func (f *FieldItem) Close() {}
func (f *FieldItem) Name() string { return f.name }

func (f *FieldItem) Summary() omm.ElementList {
	return omm.ElementList{
		{Name: omm.ElemType, Value: omm.DictTypeFieldDefinitions},
		{Name: omm.ElemVersion, Value: f.dict.FieldVersion()},
		{Name: omm.ElemDictionaryID, Value: int64(0)},
		{Name: omm.ElemCount, Value: uint64(f.dict.FieldCount())},
	}
}

func (f *FieldItem) Entries(verbosity uint32) []omm.Payload {
	fields := f.dict.Fields()
	out := make([]omm.Payload, 0, len(fields))
	for _, fd := range fields {
		e := omm.ElementList{
			{Name: elemName, Value: fd.Acronym},
			{Name: elemFID, Value: int64(fd.FID)},
			{Name: elemRippleTo, Value: int64(fd.Ripple)},
			{Name: elemType, Value: fd.Type},
			{Name: elemLength, Value: uint64(fd.Length)},
			{Name: elemRWFType, Value: fd.RWFType},
			{Name: elemRWFLen, Value: uint64(fd.RWFLen)},
		}
		if verbosity&omm.DictVerbosityNormal == omm.DictVerbosityNormal {
			e = append(e, omm.Element{Name: elemEnumLength, Value: uint64(fd.EnumLength)})
		}
		if verbosity&omm.DictVerbosityVerbose == omm.DictVerbosityVerbose {
			e = append(e, omm.Element{Name: elemLongName, Value: fd.DDEAcronym})
		}
		out = append(out, e)
	}
	return out
}

// EnumItem publishes the enumerated type tables.
type EnumItem struct {
	name string
	dict *dictionary.Dictionary
}

var _ Item = (*EnumItem)(nil)

func NewEnumItem(name string, d *dictionary.Dictionary) *EnumItem {
	return &EnumItem{name: name, dict: d}
}

func (e *EnumItem) ModelType() omm.MsgModelType { return omm.ModelDictionary }
func (e *EnumItem) Close() {}
func (e *EnumItem) Name() string { return e.name }

func (e *EnumItem) Summary() omm.ElementList {
	return omm.ElementList{
		{Name: omm.ElemType, Value: omm.DictTypeEnumTables},
		{Name: omm.ElemVersion, Value: e.dict.EnumVersion()},
		{Name: "DT_Version", Value: e.dict.EnumDisplayVersion()},
		{Name: omm.ElemDictionaryID, Value: int64(0)},
		{Name: omm.ElemCount, Value: uint64(len(e.dict.EnumTables()))},
	}
}

func (e *EnumItem) Entries(verbosity uint32) []omm.Payload {
	tables := e.dict.EnumTables()
	out := make([]omm.Payload, 0, len(tables))
	for _, t := range tables {
		fids := make([]int64, 0, len(t.FIDs))
		for _, fid := range t.FIDs {
			fids = append(fids, int64(fid))
		}
		values := make([]uint64, 0, len(t.Values))
		displays := make([]string, 0, len(t.Values))
		meanings := make([]string, 0, len(t.Values))
		for _, v := range t.Values {
			values = append(values, uint64(v.Value))
			displays = append(displays, v.Display)
			meanings = append(meanings, v.Meaning)
		}
		entry := omm.ElementList{
			{Name: elemFIDs, Value: fids},
			{Name: elemValues, Value: values},
			{Name: elemDisplays, Value: displays},
		}
		if verbosity&omm.DictVerbosityVerbose == omm.DictVerbosityVerbose {
			entry = append(entry, omm.Element{Name: elemMeanings, Value: meanings})
		}
		out = append(out, entry)
	}
	return out
}
