package core

import (
	"testing"

	"github.com/amoylab/mdprovider/pkg/omm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceInfo_AddCapabilityIdempotent(t *testing.T) {
	svc := NewServiceInfo("SVC", 2)
	svc.AddCapability(omm.ModelMarketByOrder)
	svc.AddCapability(omm.ModelDictionary)
	svc.AddCapability(omm.ModelMarketByOrder)

	assert.Equal(t, []omm.MsgModelType{omm.ModelDictionary, omm.ModelMarketByOrder}, svc.Capabilities())
	assert.True(t, svc.HasCapability(omm.ModelDictionary))
	assert.False(t, svc.HasCapability(omm.ModelMarketPrice))

	caps := svc.Capabilities()
	caps[0] = omm.ModelLogin
	assert.Equal(t, omm.ModelDictionary, svc.Capabilities()[0])
}

func TestServiceInfo_Dictionaries(t *testing.T) {
	svc := NewServiceInfo("SVC", 2)
	svc.AddDictionaryProvided("RWFFld")
	svc.AddDictionaryProvided("RWFEnum")
	svc.AddDictionaryProvided("RWFFld")
	svc.AddDictionaryUsed("RWFFld")

	assert.ElementsMatch(t, []string{"RWFFld", "RWFEnum"}, svc.DictionariesProvided())
	assert.Equal(t, []string{"RWFFld"}, svc.DictionariesUsed())
}

func TestServiceInfo_StateChanges(t *testing.T) {
	dir := NewServiceDirectory()
	svc := NewServiceInfo("SVC", 2)
	dir.Add(svc)

	type change struct {
		name   string
		filter uint32
	}
	var got []change
	dir.Subscribe(func(s *ServiceInfo, f uint32) { got = append(got, change{s.Name, f}) })

	assert.Equal(t, ServiceDown, svc.State())
	svc.SetUp()
	svc.SetUp()
	svc.SetDown("maintenance")
	svc.AddCapability(omm.ModelMarketPrice)

	assert.Equal(t, []change{{"SVC", omm.FilterState}, {"SVC", omm.FilterState}, {"SVC", omm.FilterInfo}}, got)
	assert.Equal(t, "maintenance", svc.Status().Text)
	assert.False(t, svc.AcceptingRequests())
	assert.Equal(t, "Down", svc.State().String())
}

func TestServiceDirectory_AddReplacesByName(t *testing.T) {
	dir := NewServiceDirectory()
	a := NewServiceInfo("A", 1)
	b := NewServiceInfo("B", 2)
	a2 := NewServiceInfo("A", 3)
	dir.Add(a)
	dir.Add(b)
	dir.Add(a2)

	all := dir.All()
	require.Len(t, all, 2)
	assert.Same(t, a2, all[0])
	assert.Same(t, b, all[1])

	got, ok := dir.ByID(3)
	require.True(t, ok)
	assert.Same(t, a2, got)
	_, ok = dir.ByID(1)
	assert.False(t, ok)

	// the replaced service no longer reports changes
	var n int
	dir.Subscribe(func(*ServiceInfo, uint32) { n++ })
	a.SetUp()
	assert.Zero(t, n)
}
