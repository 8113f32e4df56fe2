package dictionary

import (
	"path/filepath"
	"testing"

	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/internal/dictionary"
	"github.com/amoylab/mdprovider/internal/core/coretest"
	"github.com/amoylab/mdprovider/pkg/omm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fieldFile = filepath.Join("..", "..", "dictionary", "testdata", "RDMFieldDictionary")
	enumFile  = filepath.Join("..", "..", "dictionary", "testdata", "enumtype.def")
)

func setup(t *testing.T, fragmentSize int) (*Manager, *core.PubContext, *coretest.Transport) {
	t.Helper()
	pub, tr := coretest.NewPub(t, core.WithService(core.NewServiceInfo("DIRECT_FEED", 1)))
	m := New(pub, &config.DictionaryConfig{FieldName: "RWFFld", EnumName: "RWFEnum", FragmentSize: fragmentSize})
	require.NoError(t, m.AutoDictionary(fieldFile, enumFile))
	return m, pub, tr
}

func dictRequest(name string, verbosity uint32, ind omm.Indication) *omm.Msg {
	msg := coretest.Request(omm.ModelDictionary, name, ind)
	msg.Attrib.Filter = verbosity
	msg.Attrib.ServiceName = "DIRECT_FEED"
	return msg
}

func TestAutoDictionary_Registers(t *testing.T) {
	m, pub, _ := setup(t, 0)

	got, ok := pub.Router().DomainMgr(omm.ModelDictionary)
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.NotNil(t, pub.Dictionary())

	svc := pub.Service()
	assert.ElementsMatch(t, []string{"RWFFld", "RWFEnum"}, svc.DictionariesProvided())
	assert.True(t, svc.HasCapability(omm.ModelDictionary))

	_, ok = m.Item("RWFFld")
	assert.True(t, ok)
	_, ok = m.Item("RWFEnum")
	assert.True(t, ok)
}

func TestAutoDictionary_FailureRegistersNothing(t *testing.T) {
	pub, _ := coretest.NewPub(t, core.WithService(core.NewServiceInfo("DIRECT_FEED", 1)))
	m := New(pub, &config.DictionaryConfig{FieldName: "RWFFld", EnumName: "RWFEnum"})

	err := m.AutoDictionary(fieldFile, "missing.def")
	require.Error(t, err)

	_, ok := pub.Router().DomainMgr(omm.ModelDictionary)
	assert.False(t, ok)
	_, ok = m.Item("RWFFld")
	assert.False(t, ok)
	assert.Empty(t, pub.Service().DictionariesProvided())
	assert.Nil(t, pub.Dictionary())
}

func TestDictionary_UnknownName(t *testing.T) {
	_, pub, tr := setup(t, 0)
	s := coretest.Connect(t, pub, "c1")

	coretest.Send(pub, "c1", 4, dictRequest("Unknown", omm.DictVerbosityNormal, omm.IndRefresh))

	msgs := tr.SentOn(4)
	require.Len(t, msgs, 1)
	assert.Equal(t, omm.MsgTypeStatusResp, msgs[0].Type)
	assert.Equal(t, omm.StreamClosed, msgs[0].StreamState)
	assert.Equal(t, omm.StatusNotFound, msgs[0].StatusCode)
	assert.Equal(t, "Unknown dictionary", msgs[0].StatusText)
	assert.Zero(t, s.StreamCount())
}

func TestDictionary_InfoSummary(t *testing.T) {
	_, pub, tr := setup(t, 0)
	coretest.Connect(t, pub, "c1")

	coretest.Send(pub, "c1", 4, dictRequest("RWFFld", omm.DictVerbosityInfo, omm.IndRefresh))

	msgs := tr.SentOn(4)
	require.Len(t, msgs, 1)
	series := msgs[0].Payload.(*omm.Series)
	assert.Empty(t, series.Entries)
	count, _ := series.Summary.GetUint(omm.ElemCount)
	assert.Equal(t, uint64(16), count)
	version, _ := series.Summary.GetString(omm.ElemVersion)
	assert.Equal(t, "4.20.30", version)
	assert.True(t, msgs[0].Has(omm.IndRefreshComplete))
	assert.True(t, msgs[0].Solicited)
}

func TestDictionary_Fragments(t *testing.T) {
	_, pub, tr := setup(t, 5)
	s := coretest.Connect(t, pub, "c1")

	coretest.Send(pub, "c1", 4, dictRequest("RWFFld", omm.DictVerbosityNormal, omm.IndRefresh))

	msgs := tr.SentOn(4)
	require.Len(t, msgs, 4) // 16 fields in fragments of 5
	total := 0
	for i, msg := range msgs {
		series := msg.Payload.(*omm.Series)
		total += len(series.Entries)
		assert.Equal(t, i == 0, msg.Has(omm.IndClearCache))
		assert.Equal(t, i == len(msgs)-1, msg.Has(omm.IndRefreshComplete))
		assert.Equal(t, i == 0, series.Summary != nil)
		assert.Equal(t, "RWFFld", msg.Name())
	}
	assert.Equal(t, 16, total)

	first := msgs[0].Payload.(*omm.Series).Entries[0].(omm.ElementList)
	name, _ := first.GetString("NAME")
	assert.Equal(t, "PROD_PERM", name)
	_, hasLong := first.Get("LONGNAME")
	assert.False(t, hasLong)

	item, ok := s.Stream(4)
	require.True(t, ok)
	assert.Equal(t, omm.ModelDictionary, item.ModelType())
}

func TestDictionary_VerboseEnums(t *testing.T) {
	_, pub, tr := setup(t, 0)
	coretest.Connect(t, pub, "c1")

	coretest.Send(pub, "c1", 5, dictRequest("RWFEnum", omm.DictVerbosityVerbose, omm.IndRefresh))
	msgs := tr.SentOn(5)
	require.Len(t, msgs, 1)
	series := msgs[0].Payload.(*omm.Series)
	require.Len(t, series.Entries, 2)
	table := series.Entries[1].(omm.ElementList)
	meanings, ok := table.Get("MEANING")
	require.True(t, ok)
	assert.Contains(t, meanings, "US Dollar (USA)")
}

func TestDictionary_NonStreamingIsFinal(t *testing.T) {
	_, pub, tr := setup(t, 5)
	s := coretest.Connect(t, pub, "c1")

	coretest.Send(pub, "c1", 4, dictRequest("RWFFld", omm.DictVerbosityNormal, omm.IndRefresh|omm.IndNonStreaming))

	msgs := tr.SentOn(4)
	require.Len(t, msgs, 4)
	for _, msg := range msgs {
		assert.Equal(t, omm.StreamNonStreaming, msg.StreamState)
	}
	assert.Zero(t, s.StreamCount())
}

func TestDictionary_ReRequestAndClose(t *testing.T) {
	m, pub, tr := setup(t, 0)
	s := coretest.Connect(t, pub, "c1")
	coretest.Send(pub, "c1", 4, dictRequest("RWFFld", omm.DictVerbosityInfo, omm.IndRefresh))
	coretest.Send(pub, "c1", 5, dictRequest("RWFFld", omm.DictVerbosityInfo, omm.IndRefresh))
	tr.Reset()

	coretest.Send(pub, "c1", 4, dictRequest("RWFFld", omm.DictVerbosityInfo, 0))
	assert.Empty(t, tr.Sent())
	coretest.Send(pub, "c1", 4, dictRequest("RWFFld", omm.DictVerbosityInfo, omm.IndRefresh))
	assert.Len(t, tr.SentOn(4), 1)

	// closing one stream leaves the shared item usable by the other
	coretest.Send(pub, "c1", 4, omm.NewCloseRequest(omm.ModelDictionary))
	assert.Equal(t, 1, s.StreamCount())
	_, ok := m.Item("RWFFld")
	assert.True(t, ok)
}

func TestDictionary_ReloadServesOpenStreams(t *testing.T) {
	m, pub, tr := setup(t, 0)
	s := coretest.Connect(t, pub, "c1")
	coretest.Send(pub, "c1", 7, dictRequest("RWFFld", omm.DictVerbosityInfo, omm.IndRefresh))
	before, ok := m.Item("RWFFld")
	require.True(t, ok)
	tr.Reset()

	reloaded := dictionary.New()
	m.UseDictionary(reloaded)
	assert.Same(t, reloaded, pub.Dictionary())

	current, ok := m.Item("RWFFld")
	require.True(t, ok)
	assert.Same(t, before, current)
	held, ok := s.Stream(7)
	require.True(t, ok)
	assert.Same(t, current, held)

	coretest.Send(pub, "c1", 7, dictRequest("RWFFld", omm.DictVerbosityInfo, omm.IndRefresh))
	msgs := tr.SentOn(7)
	require.Len(t, msgs, 1)
	count, _ := msgs[0].Payload.(*omm.Series).Summary.GetUint(omm.ElemCount)
	assert.Zero(t, count)
}

func TestDictionary_ReRequestUsesRegisteredItem(t *testing.T) {
	m, pub, tr := setup(t, 0)
	coretest.Connect(t, pub, "c1")
	coretest.Send(pub, "c1", 7, dictRequest("RWFEnum", omm.DictVerbosityInfo, omm.IndRefresh))
	tr.Reset()

	m.Register(NewEnumItem("RWFEnum", dictionary.New()))
	coretest.Send(pub, "c1", 7, dictRequest("RWFEnum", omm.DictVerbosityInfo, omm.IndRefresh))
	msgs := tr.SentOn(7)
	require.Len(t, msgs, 1)
	count, _ := msgs[0].Payload.(*omm.Series).Summary.GetUint(omm.ElemCount)
	assert.Zero(t, count)
}
