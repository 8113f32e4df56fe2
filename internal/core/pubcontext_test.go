package core

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/amoylab/mdprovider/pkg/omm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestPub_SubmitFinalRemovesTokenFirst(t *testing.T) {
	pub, tr := newTestPub(t)
	mgr := newRecordingMgr(pub, omm.ModelMarketPrice, "")
	pub.AddDomainMgr(mgr)
	s := connect(t, pub, "c1")

	send(pub, "c1", 1, request(omm.ModelMarketPrice, "IBM.N", omm.IndRefresh))
	item, _ := s.Stream(1)

	final := omm.NewStatus(omm.ModelMarketPrice, omm.StreamClosed, omm.DataSuspect, omm.StatusNotFound, "gone")
	require.NoError(t, mgr.Submit(context.Background(), s, 1, final))

	_, ok := s.Stream(1)
	assert.False(t, ok)
	assert.True(t, item.(*Stream).Closed())
	msgs := tr.messages()
	assert.Same(t, final, msgs[len(msgs)-1].msg)
}

func TestPub_SubmitTargetGoneIsImplicitClose(t *testing.T) {
	pub, tr := newTestPub(t)
	mgr := newRecordingMgr(pub, omm.ModelMarketPrice, "")
	pub.AddDomainMgr(mgr)
	s := connect(t, pub, "c1")

	send(pub, "c1", 1, request(omm.ModelMarketPrice, "IBM.N", omm.IndRefresh))
	tr.gone[1] = true

	err := mgr.Submit(context.Background(), s, 1, omm.NewUpdate(omm.ModelMarketPrice, nil))
	assert.ErrorIs(t, err, ErrTargetGone)
	assert.Zero(t, s.StreamCount())
}

func TestPub_SubmitDefaultsModelType(t *testing.T) {
	pub, tr := newTestPub(t)
	mgr := newRecordingMgr(pub, omm.ModelDictionary, "")
	s := connect(t, pub, "c1")

	require.NoError(t, mgr.Submit(context.Background(), s, 2, &omm.Msg{Type: omm.MsgTypeUpdateResp}))
	assert.Equal(t, omm.ModelDictionary, tr.messages()[0].msg.ModelType)
}

func TestPub_EncodeClosedStatus(t *testing.T) {
	pub, _ := newTestPub(t)
	mgr := newRecordingMgr(pub, omm.ModelDictionary, "")
	msg := mgr.EncodeClosedStatus("Unknown dictionary")
	assert.Equal(t, omm.MsgTypeStatusResp, msg.Type)
	assert.Equal(t, omm.StreamClosed, msg.StreamState)
	assert.Equal(t, omm.DataSuspect, msg.DataState)
	assert.Equal(t, omm.StatusNotFound, msg.StatusCode)
	assert.Equal(t, "Unknown dictionary", msg.StatusText)
}

func TestPub_CapabilitiesFromRegisteredManagers(t *testing.T) {
	svc := NewServiceInfo("DIRECT_FEED", 1)
	pub, _ := newTestPub(t, WithService(svc))

	pub.AddDomainMgr(newRecordingMgr(pub, omm.ModelLogin, ""))
	pub.AddDomainMgr(newRecordingMgr(pub, omm.ModelMarketByPrice, "DIRECT_FEED"))
	pub.AddDomainMgr(newRecordingMgr(pub, omm.ModelMarketPrice, "DIRECT_FEED"))
	pub.AddDomainMgr(newRecordingMgr(pub, omm.ModelMarketPrice, "DIRECT_FEED"))
	pub.AddDomainMgr(newRecordingMgr(pub, omm.ModelSymbolList, "OTHER"))

	assert.Equal(t, []omm.MsgModelType{omm.ModelMarketPrice, omm.ModelMarketByPrice}, svc.Capabilities())
}

func TestPub_CapabilitiesOrderIndependentProperty(t *testing.T) {
	models := []omm.MsgModelType{
		omm.ModelDictionary, omm.ModelMarketPrice, omm.ModelMarketByOrder,
		omm.ModelMarketByPrice, omm.ModelMarketMaker, omm.ModelSymbolList, omm.ModelCustomBase,
	}
	rapid.Check(t, func(rt *rapid.T) {
		picks := rapid.SliceOf(rapid.SampledFrom(models)).Draw(rt, "registrations")

		svc := NewServiceInfo("SVC", 1)
		pub := NewPubContext(zap.NewNop(), newFakeTransport(), WithInlineDispatch(), WithService(svc))
		for _, m := range picks {
			pub.AddDomainMgr(newRecordingMgr(pub, m, "SVC"))
		}

		want := slices.Clone(picks)
		slices.Sort(want)
		want = slices.Compact(want)
		got := svc.Capabilities()
		if len(want) == 0 && len(got) == 0 {
			return
		}
		if !slices.Equal(want, got) {
			rt.Fatalf("capabilities %v, want %v", got, want)
		}
	})
}

func TestPub_IndicateServiceInitialized(t *testing.T) {
	svc := NewServiceInfo("DIRECT_FEED", 1)
	pub, _ := newTestPub(t, WithService(svc))
	var changes []uint32
	pub.Directory().Subscribe(func(_ *ServiceInfo, filter uint32) { changes = append(changes, filter) })

	mgr := newRecordingMgr(pub, omm.ModelLogin, "")
	mgr.IndicateServiceInitialized()

	assert.Equal(t, ServiceUp, svc.State())
	assert.True(t, svc.AcceptingRequests())
	assert.Equal(t, []uint32{omm.FilterState}, changes)

	// no change, no notification
	mgr.IndicateServiceInitialized()
	assert.Len(t, changes, 1)
}

func TestPub_TimerRunsOnDispatchAndStops(t *testing.T) {
	pub, tr := newTestPub(t)
	fired := 0
	h := pub.ScheduleTimer(time.Second, true, func(context.Context) { fired++ })

	require.Contains(t, tr.timers, h)
	assert.True(t, tr.timers[h].repeating)
	tr.fire(h)
	tr.fire(h)
	assert.Equal(t, 2, fired)

	// an expiration already in flight is dropped after unregistering
	cb := tr.timers[h].fn
	pub.UnregisterTimer(h)
	assert.NotContains(t, tr.timers, h)
	cb()
	assert.Equal(t, 2, fired)
}

func TestPub_OneShotTimerForgottenAfterFiring(t *testing.T) {
	pub, tr := newTestPub(t)
	fired := 0
	h := pub.ScheduleTimer(time.Millisecond, false, func(context.Context) { fired++ })
	cb := tr.timers[h].fn
	cb()
	cb()
	assert.Equal(t, 1, fired)
}

func TestPub_FuncEvent(t *testing.T) {
	pub, _ := newTestPub(t)
	connect(t, pub, "c1")
	var n int
	require.NoError(t, pub.Post(FuncEvent{Fn: func(_ context.Context, p *PubContext) { n = p.Sessions().Len() }}))
	assert.Equal(t, 1, n)
}

func TestPub_CloseAll(t *testing.T) {
	pub, tr := newTestPub(t)
	connect(t, pub, "c1")
	connect(t, pub, "c2")
	pub.CloseAll(context.Background())
	assert.Zero(t, pub.Sessions().Len())
	assert.ElementsMatch(t, []omm.Handle{"c1", "c2"}, tr.unregistered)
}

func TestPub_RunWithDispatcher(t *testing.T) {
	tr := newFakeTransport()
	pub := NewPubContext(zap.NewNop(), tr, WithQueueSize(8))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	require.NoError(t, pub.PostWait(ctx, ConnectionEvent{Handle: "c1"}))
	result := make(chan int, 1)
	require.NoError(t, pub.PostWait(ctx, FuncEvent{Fn: func(_ context.Context, p *PubContext) {
		result <- p.Sessions().Len()
	}}))

	select {
	case n := <-result:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not run the event")
	}
	cancel()
	require.NoError(t, <-done)
	assert.ErrorIs(t, pub.Post(FuncEvent{Fn: func(context.Context, *PubContext) {}}), ErrDispatcherClosed)
}

func TestPub_Do(t *testing.T) {
	tr := newFakeTransport()
	pub := NewPubContext(zap.NewNop(), tr, WithQueueSize(8))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	require.NoError(t, pub.PostWait(ctx, ConnectionEvent{Handle: "c1"}))
	var n int
	require.NoError(t, pub.Do(ctx, func(_ context.Context, p *PubContext) { n = p.Sessions().Len() }))
	assert.Equal(t, 1, n)

	cancel()
	require.NoError(t, <-done)
	assert.Error(t, pub.Do(context.Background(), func(context.Context, *PubContext) {}))
}
