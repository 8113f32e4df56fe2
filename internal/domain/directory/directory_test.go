package directory

import (
	"testing"

	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/internal/core/coretest"
	"github.com/amoylab/mdprovider/pkg/omm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Manager, *core.PubContext, *coretest.Transport, *core.ServiceInfo) {
	t.Helper()
	svc := core.NewServiceInfo("DIRECT_FEED", 7)
	svc.Vendor = "amoylab"
	svc.IsSource = true
	svc.QoS = []string{"RealTime"}
	pub, tr := coretest.NewPub(t, core.WithService(svc))
	m := New(pub)
	pub.AddDomainMgr(m)
	svc.AddCapability(omm.ModelMarketPrice)
	svc.AddDictionaryProvided("RWFFld")
	return m, pub, tr, svc
}

func dirRequest(filter uint32, ind omm.Indication) *omm.Msg {
	msg := coretest.Request(omm.ModelSource, "", ind)
	msg.Attrib.Filter = filter
	return msg
}

func serviceEntry(t *testing.T, msg *omm.Msg) (omm.MapEntry, *omm.FilterList) {
	t.Helper()
	payload, ok := msg.Payload.(*omm.Map)
	require.True(t, ok)
	require.Len(t, payload.Entries, 1)
	fl, ok := payload.Entries[0].Value.(*omm.FilterList)
	require.True(t, ok)
	return payload.Entries[0], fl
}

func TestDirectory_RefreshFromLiveState(t *testing.T) {
	m, pub, tr, _ := setup(t)
	s := coretest.Connect(t, pub, "c1")

	coretest.Send(pub, "c1", 2, dirRequest(omm.FilterInfo|omm.FilterState|omm.FilterLoad, omm.IndRefresh))

	msgs := tr.SentOn(2)
	require.Len(t, msgs, 1)
	resp := msgs[0]
	assert.Equal(t, omm.MsgTypeRefreshResp, resp.Type)
	assert.True(t, resp.Solicited)
	assert.Equal(t, omm.StreamOpen, resp.StreamState)
	assert.Equal(t, omm.FilterInfo|omm.FilterState, resp.Attrib.Filter)

	entry, fl := serviceEntry(t, resp)
	assert.Equal(t, uint64(7), entry.Key)
	assert.Equal(t, []uint32{omm.FilterInfo, omm.FilterState}, fl.IDs())

	info := fl.Entries[0].Data
	name, _ := info.GetString(omm.ElemName)
	assert.Equal(t, "DIRECT_FEED", name)
	caps, _ := info.Get(omm.ElemCapabilities)
	assert.Equal(t, []uint64{uint64(omm.ModelMarketPrice)}, caps)
	dicts, _ := info.Get(omm.ElemDictionariesProvided)
	assert.Equal(t, []string{"RWFFld"}, dicts)

	state := fl.Entries[1].Data
	st, _ := state.GetUint(omm.ElemServiceState)
	assert.Equal(t, uint64(core.ServiceDown), st)

	assert.Equal(t, 1, m.StreamCount())
	assert.Equal(t, 1, s.StreamCount())
}

func TestDirectory_FilterSelectsSections(t *testing.T) {
	_, pub, tr, _ := setup(t)
	coretest.Connect(t, pub, "c1")

	coretest.Send(pub, "c1", 2, dirRequest(omm.FilterGroup, omm.IndRefresh))
	_, fl := serviceEntry(t, tr.SentOn(2)[0])
	assert.Equal(t, []uint32{omm.FilterGroup}, fl.IDs())
}

func TestDirectory_ServiceNameSelectsService(t *testing.T) {
	_, pub, tr, _ := setup(t)
	pub.Directory().Add(core.NewServiceInfo("OTHER", 9))
	coretest.Connect(t, pub, "c1")

	all := dirRequest(omm.FilterInfo, omm.IndRefresh)
	coretest.Send(pub, "c1", 2, all)
	assert.Len(t, tr.SentOn(2)[0].Payload.(*omm.Map).Entries, 2)

	one := dirRequest(omm.FilterInfo, omm.IndRefresh)
	one.Attrib.ServiceName = "OTHER"
	coretest.Send(pub, "c1", 3, one)
	entry, _ := serviceEntry(t, tr.SentOn(3)[0])
	assert.Equal(t, uint64(9), entry.Key)

	missing := dirRequest(omm.FilterInfo, omm.IndRefresh)
	missing.Attrib.ServiceName = "NOPE"
	coretest.Send(pub, "c1", 4, missing)
	assert.Empty(t, tr.SentOn(4)[0].Payload.(*omm.Map).Entries)
}

func TestDirectory_NonStreaming(t *testing.T) {
	m, pub, tr, _ := setup(t)
	s := coretest.Connect(t, pub, "c1")

	coretest.Send(pub, "c1", 2, dirRequest(omm.FilterInfo, omm.IndRefresh|omm.IndNonStreaming))
	assert.Equal(t, omm.StreamNonStreaming, tr.SentOn(2)[0].StreamState)
	assert.Zero(t, m.StreamCount())
	assert.Zero(t, s.StreamCount())
}

func TestDirectory_ReRequest(t *testing.T) {
	_, pub, tr, _ := setup(t)
	coretest.Connect(t, pub, "c1")
	coretest.Send(pub, "c1", 2, dirRequest(omm.FilterInfo, omm.IndRefresh))
	tr.Reset()

	coretest.Send(pub, "c1", 2, dirRequest(omm.FilterState, 0))
	assert.Empty(t, tr.Sent())

	coretest.Send(pub, "c1", 2, dirRequest(omm.FilterState, omm.IndRefresh))
	require.Len(t, tr.SentOn(2), 1)
	_, fl := serviceEntry(t, tr.SentOn(2)[0])
	assert.Equal(t, []uint32{omm.FilterState}, fl.IDs())
}

func TestDirectory_PushesStateChanges(t *testing.T) {
	m, pub, tr, svc := setup(t)
	coretest.Connect(t, pub, "c1")
	coretest.Connect(t, pub, "c2")
	coretest.Send(pub, "c1", 2, dirRequest(omm.FilterInfo|omm.FilterState, omm.IndRefresh))
	coretest.Send(pub, "c2", 2, dirRequest(omm.FilterInfo, omm.IndRefresh))
	tr.Reset()

	svc.SetUp()

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, omm.Handle("c1"), sent[0].Session)
	upd := sent[0].Msg
	assert.Equal(t, omm.MsgTypeUpdateResp, upd.Type)
	entry, fl := serviceEntry(t, upd)
	assert.Equal(t, omm.MapActionUpdate, entry.Action)
	assert.Equal(t, []uint32{omm.FilterState}, fl.IDs())
	accepting, _ := fl.Entries[0].Data.GetUint(omm.ElemAcceptingRequests)
	assert.Equal(t, uint64(1), accepting)

	// a capability change goes to both streams
	tr.Reset()
	svc.AddCapability(omm.ModelMarketByPrice)
	assert.Len(t, tr.Sent(), 2)

	// closed streams get nothing
	coretest.Send(pub, "c1", 2, omm.NewCloseRequest(omm.ModelSource))
	coretest.Send(pub, "c2", 2, omm.NewCloseRequest(omm.ModelSource))
	assert.Zero(t, m.StreamCount())
	tr.Reset()
	svc.SetDown("maintenance")
	assert.Empty(t, tr.Sent())
}

func TestDirectory_InactiveSessionForgotten(t *testing.T) {
	m, pub, _, _ := setup(t)
	coretest.Connect(t, pub, "c1")
	coretest.Send(pub, "c1", 2, dirRequest(omm.FilterInfo, omm.IndRefresh))
	require.Equal(t, 1, m.StreamCount())

	pub.HandleEvent(t.Context(), core.InactiveEvent{Session: "c1"})
	assert.Zero(t, m.StreamCount())
}
