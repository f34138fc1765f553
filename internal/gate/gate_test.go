package gate

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rondo/internal/ban"
	"rondo/internal/protocol"
)

func newTestGate(t *testing.T, policy FailPolicy) (*Gate, *ban.MemoryStore, *ban.Directory) {
	t.Helper()
	store := ban.NewMemoryStore()
	dir := ban.NewDirectory(store, clock.NewMock(), time.Second)
	return New(dir, policy, nil), store, dir
}

func punch(source, target string) Request {
	return Request{SourceID: source, TargetID: target, Kind: protocol.KindPunchHole}
}

func relay(source, target string) Request {
	return Request{SourceID: source, TargetID: target, Kind: protocol.KindRelay}
}

func TestGate_AllowWhenNeitherBanned(t *testing.T) {
	g, _, dir := newTestGate(t, FailOpen)
	require.NoError(t, dir.Refresh(context.Background()))

	d := g.Decide(punch("a", "b"), time.Now())
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
}

func TestGate_BansAreBidirectional(t *testing.T) {
	ctx := context.Background()
	g, store, dir := newTestGate(t, FailOpen)

	require.NoError(t, store.SetBan(ctx, "a", "abuse", "admin"))
	require.NoError(t, dir.Refresh(ctx))

	// a cannot initiate.
	d := g.Decide(punch("a", "b"), time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonSourceBanned, d.Reason)

	// Nobody can reach a.
	d = g.Decide(punch("b", "a"), time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonTargetBanned, d.Reason)

	// Unrelated devices are unaffected.
	assert.True(t, g.Decide(punch("b", "c"), time.Now()).Allowed)
}

func TestGate_SourceBanReportedBeforeTargetBan(t *testing.T) {
	ctx := context.Background()
	g, store, dir := newTestGate(t, FailOpen)

	require.NoError(t, store.SetBan(ctx, "a", "abuse", "admin"))
	require.NoError(t, store.SetBan(ctx, "b", "abuse", "admin"))
	require.NoError(t, dir.Refresh(ctx))

	d := g.Decide(punch("a", "b"), time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonSourceBanned, d.Reason)
}

func TestGate_SameDecisionForPunchAndRelay(t *testing.T) {
	ctx := context.Background()
	g, store, dir := newTestGate(t, FailOpen)

	require.NoError(t, store.SetBan(ctx, "a", "abuse", "admin"))
	require.NoError(t, dir.Refresh(ctx))

	for _, req := range []Request{punch("a", "b"), relay("a", "b")} {
		d := g.Decide(req, time.Now())
		assert.False(t, d.Allowed, "kind %s", req.Kind)
		assert.Equal(t, ReasonSourceBanned, d.Reason, "kind %s", req.Kind)
	}
}

func TestGate_UnbanClearsBothDirections(t *testing.T) {
	ctx := context.Background()
	g, store, dir := newTestGate(t, FailOpen)

	require.NoError(t, store.SetBan(ctx, "a", "abuse", "admin"))
	require.NoError(t, dir.Refresh(ctx))
	require.False(t, g.Decide(punch("a", "b"), time.Now()).Allowed)

	require.NoError(t, store.ClearBan(ctx, "a"))
	require.NoError(t, dir.Refresh(ctx))

	assert.True(t, g.Decide(punch("a", "b"), time.Now()).Allowed)
	assert.True(t, g.Decide(relay("b", "a"), time.Now()).Allowed)
}

func TestGate_FailOpenAllowsWhenNeverInitialized(t *testing.T) {
	g, _, dir := newTestGate(t, FailOpen)
	require.False(t, dir.Initialized())

	d := g.Decide(punch("a", "b"), time.Now())
	assert.True(t, d.Allowed)
}

func TestGate_FailClosedDeniesWhenNeverInitialized(t *testing.T) {
	g, _, dir := newTestGate(t, FailClosed)
	require.False(t, dir.Initialized())

	d := g.Decide(punch("a", "b"), time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotReady, d.Reason)

	// Once the directory loads, normal decisions resume.
	require.NoError(t, dir.Refresh(context.Background()))
	assert.True(t, g.Decide(punch("a", "b"), time.Now()).Allowed)
}

func TestGate_OfflineDeviceCannotBypassBan(t *testing.T) {
	ctx := context.Background()
	g, store, dir := newTestGate(t, FailOpen)

	// "ghost" never heartbeated; the gate must still veto it.
	require.NoError(t, store.SetBan(ctx, "ghost", "abuse", "admin"))
	require.NoError(t, dir.Refresh(ctx))

	assert.False(t, g.Decide(punch("ghost", "b"), time.Now()).Allowed)
	assert.False(t, g.Decide(relay("b", "ghost"), time.Now()).Allowed)
}

func TestParseFailPolicy(t *testing.T) {
	p, err := ParseFailPolicy("open")
	require.NoError(t, err)
	assert.Equal(t, FailOpen, p)

	p, err = ParseFailPolicy("closed")
	require.NoError(t, err)
	assert.Equal(t, FailClosed, p)

	_, err = ParseFailPolicy("yolo")
	assert.Error(t, err)
}
