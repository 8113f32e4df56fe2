package directory

import (
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/pkg/omm"
)

// encodeService builds the filter sections of svc selected by filter.
func encodeService(svc *core.ServiceInfo, filter uint32) *omm.FilterList {
	fl := &omm.FilterList{}
	if filter&omm.FilterInfo != 0 {
		fl.Entries = append(fl.Entries, omm.FilterEntry{ID: omm.FilterInfo, Action: omm.MapActionAdd, Data: encodeInfo(svc)})
	}
	if filter&omm.FilterState != 0 {
		fl.Entries = append(fl.Entries, omm.FilterEntry{ID: omm.FilterState, Action: omm.MapActionAdd, Data: encodeState(svc)})
	}
	if filter&omm.FilterGroup != 0 {
		// no item groups are published
		fl.Entries = append(fl.Entries, omm.FilterEntry{ID: omm.FilterGroup, Action: omm.MapActionAdd, Data: omm.ElementList{}})
	}
	return fl
}

func encodeInfo(svc *core.ServiceInfo) omm.ElementList {
	caps := svc.Capabilities()
	capIDs := make([]uint64, 0, len(caps))
	for _, c := range caps {
		capIDs = append(capIDs, uint64(c))
	}
	qos := svc.QoS
	if qos == nil {
		qos = []string{}
	}
	isSource := uint64(0)
	if svc.IsSource {
		isSource = 1
	}
	return omm.ElementList{
		{Name: omm.ElemName, Value: svc.Name},
		{Name: omm.ElemVendor, Value: svc.Vendor},
		{Name: omm.ElemIsSource, Value: isSource},
		{Name: omm.ElemCapabilities, Value: capIDs},
		{Name: omm.ElemDictionariesProvided, Value: svc.DictionariesProvided()},
		{Name: omm.ElemDictionariesUsed, Value: svc.DictionariesUsed()},
		{Name: omm.ElemQoS, Value: qos},
	}
}

func encodeState(svc *core.ServiceInfo) omm.ElementList {
	accepting := uint64(0)
	if svc.AcceptingRequests() {
		accepting = 1
	}
	st := svc.Status()
	return omm.ElementList{
		{Name: omm.ElemServiceState, Value: uint64(svc.State())},
		{Name: omm.ElemAcceptingRequests, Value: accepting},
		{Name: omm.ElemStatus, Value: omm.ElementList{
			{Name: "StreamState", Value: st.StreamState.String()},
			{Name: "DataState", Value: st.DataState.String()},
			{Name: "Code", Value: st.Code.String()},
			{Name: "Text", Value: st.Text},
		}},
	}
}
