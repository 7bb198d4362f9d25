package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

func searchEntry(inv service.Invoker) service.Entry {
	return service.Entry{
		Descriptor: searchDescriptor(),
		Config:     service.Config{ID: iri("search"), EngineType: "test"},
		Invoker:    inv,
	}
}

func drain(d *DelegatedEvaluation) []ir.Binding {
	var out []ir.Binding
	for d.Next(context.Background()) {
		out = append(out, d.Binding())
	}
	return out
}

func TestDelegatedUnboundInputFailsWithoutInvoking(t *testing.T) {
	svc := rowsService(service.Row{"uri": iri("doc1")})
	d := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), ir.Binding{}, testEnv())

	assert.Empty(t, drain(d))
	require.Error(t, d.Err())
	assert.True(t, IsUnboundInputError(d.Err()))
	assert.False(t, IsServiceInvocationError(d.Err()))
	assert.Contains(t, d.Err().Error(), "token")

	assert.Equal(t, 0, svc.Calls(), "service must not be invoked")
	assert.Equal(t, StateFailed, d.State())
	assert.Equal(t, []State{StateCreated, StateFailed}, d.History())

	require.NoError(t, d.Close())
	assert.Equal(t, StateClosed, d.State())
	assert.Equal(t, 1, d.Releases())
}

func TestDelegatedStreamsRowsIntoBinding(t *testing.T) {
	svc := rowsService(
		service.Row{"uri": iri("doc1"), "rank": ir.NewInteger(1)},
		service.Row{"uri": iri("doc2"), "rank": ir.NewInteger(2), "extra": ir.NewString("ignored")},
	)
	in := ir.Binding{"token": ir.NewString("graph"), "other": iri("x")}
	d := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), in, testEnv())

	got := drain(d)
	require.NoError(t, d.Err())
	assert.Equal(t, []ir.Binding{
		{"token": ir.NewString("graph"), "other": iri("x"), "uri": iri("doc1"), "rank": ir.NewInteger(1)},
		{"token": ir.NewString("graph"), "other": iri("x"), "uri": iri("doc2"), "rank": ir.NewInteger(2)},
	}, got)

	assert.Equal(t, []State{StateCreated, StateBoundnessChecked, StateInvoking, StateStreaming, StateClosed}, d.History())
	assert.Equal(t, []int{1}, svc.Closes(), "stream closed on exhaustion")
	assert.Equal(t, ir.Binding{"token": ir.NewString("graph"), "other": iri("x")}, in, "inbound binding untouched")

	require.NoError(t, d.Close())
	assert.Equal(t, []int{1}, svc.Closes(), "Close after exhaustion is a no-op")
}

func TestDelegatedPassesResolvedInputs(t *testing.T) {
	svc := rowsService()
	slots := map[string]algebra.Var{
		"token": constSlot(ir.NewString("graph")),
		"uri":   varSlot("paper"),
	}
	d := newDelegatedEvaluation(ownedSearch(slots), searchEntry(svc), ir.Binding{}, testEnv())

	assert.Empty(t, drain(d))
	require.NoError(t, d.Err())
	require.Equal(t, 1, svc.Calls())
	assert.Equal(t, map[string]ir.Term{"token": ir.NewString("graph")}, svc.calls[0])
}

func TestDelegatedMapsOutputsThroughSlots(t *testing.T) {
	svc := rowsService(
		service.Row{"uri": iri("doc1"), "rank": ir.NewInteger(1)},
		service.Row{"uri": iri("doc2"), "rank": ir.NewInteger(2)},
	)
	slots := map[string]algebra.Var{
		"token": varSlot("q"),
		"uri":   varSlot("paper"),
		"rank":  constSlot(ir.NewInteger(2)),
	}
	in := ir.Binding{"q": ir.NewString("graph")}
	d := newDelegatedEvaluation(ownedSearch(slots), searchEntry(svc), in, testEnv())

	got := drain(d)
	require.NoError(t, d.Err())
	assert.Equal(t, []ir.Binding{{"q": ir.NewString("graph"), "paper": iri("doc2")}}, got,
		"a constant output slot keeps only rows carrying it")
}

func TestDelegatedDropsConflictingRows(t *testing.T) {
	svc := rowsService(
		service.Row{"uri": iri("doc1"), "rank": ir.NewInteger(1)},
		service.Row{"uri": iri("doc2"), "rank": ir.NewInteger(2)},
	)
	in := ir.Binding{"token": ir.NewString("graph"), "uri": iri("doc2")}
	d := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), in, testEnv())

	got := drain(d)
	require.NoError(t, d.Err())
	require.Len(t, got, 1)
	assert.Equal(t, ir.NewInteger(2), got[0]["rank"])
}

func TestDelegatedEarlyCloseReleasesOnce(t *testing.T) {
	svc := rowsService(
		service.Row{"uri": iri("doc1")},
		service.Row{"uri": iri("doc2")},
		service.Row{"uri": iri("doc3")},
	)
	d := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), ir.Binding{"token": ir.NewString("graph")}, testEnv())

	require.True(t, d.Next(context.Background()))
	assert.Equal(t, StateStreaming, d.State())

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.Equal(t, StateClosed, d.State())
	assert.Equal(t, []int{1}, svc.Closes())
	assert.Equal(t, 1, d.Releases())
	assert.False(t, d.Next(context.Background()), "no rows after Close")
}

func TestDelegatedCloseBeforeStart(t *testing.T) {
	svc := rowsService(service.Row{"uri": iri("doc1")})
	d := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), ir.Binding{"token": ir.NewString("graph")}, testEnv())

	require.NoError(t, d.Close())
	assert.False(t, d.Next(context.Background()))
	assert.Equal(t, 0, svc.Calls())
	assert.Equal(t, []State{StateCreated, StateClosed}, d.History())
}

func TestDelegatedInvocationFailure(t *testing.T) {
	cause := errors.New("connection refused")
	svc := &fakeService{respond: func(context.Context, map[string]ir.Term) (service.RowStream, error) {
		return nil, cause
	}}
	d := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), ir.Binding{"token": ir.NewString("graph")}, testEnv())

	assert.Empty(t, drain(d))
	require.Error(t, d.Err())
	assert.True(t, IsServiceInvocationError(d.Err()))
	assert.ErrorIs(t, d.Err(), cause)

	var ie *service.InvocationError
	require.ErrorAs(t, d.Err(), &ie)
	assert.Equal(t, iri("search"), ie.Service)
	assert.Equal(t, StateFailed, d.State())
}

func TestDelegatedMidStreamFailureClosesStream(t *testing.T) {
	cause := errors.New("reset by peer")
	svc := &fakeService{respond: func(context.Context, map[string]ir.Term) (service.RowStream, error) {
		return service.NewFailingStream(cause, service.Row{"uri": iri("doc1")}), nil
	}}
	d := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), ir.Binding{"token": ir.NewString("graph")}, testEnv())

	got := drain(d)
	assert.Len(t, got, 1)
	assert.ErrorIs(t, d.Err(), cause)
	assert.True(t, IsServiceInvocationError(d.Err()))
	assert.Equal(t, []int{1}, svc.Closes())

	require.NoError(t, d.Close())
	assert.Equal(t, []int{1}, svc.Closes())
}

func TestDelegatedSilentAndOptionalSuppressFailures(t *testing.T) {
	failing := func() *fakeService {
		return &fakeService{respond: func(context.Context, map[string]ir.Term) (service.RowStream, error) {
			return nil, errors.New("boom")
		}}
	}

	tests := []struct {
		name string
		mark func(*algebra.Owned)
		in   ir.Binding
	}{
		{"silent invocation failure", func(o *algebra.Owned) { o.Silent = true }, ir.Binding{"token": ir.NewString("x")}},
		{"optional invocation failure", func(o *algebra.Owned) { o.Optional = true }, ir.Binding{"token": ir.NewString("x")}},
		{"optional unbound input", func(o *algebra.Owned) { o.Optional = true }, ir.Binding{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := ownedSearch(nil)
			tt.mark(node)
			d := newDelegatedEvaluation(node, searchEntry(failing()), tt.in, testEnv())

			assert.Empty(t, drain(d))
			assert.NoError(t, d.Err())
			assert.Equal(t, StateClosed, d.State())
		})
	}
}

func TestDelegatedFailureAfterRowsIsReported(t *testing.T) {
	cause := errors.New("reset by peer")
	tests := []struct {
		name string
		mark func(*algebra.Owned)
	}{
		{"silent", func(o *algebra.Owned) { o.Silent = true }},
		{"optional", func(o *algebra.Owned) { o.Optional = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{respond: func(context.Context, map[string]ir.Term) (service.RowStream, error) {
				return service.NewFailingStream(cause, service.Row{"uri": iri("doc1")}), nil
			}}
			node := ownedSearch(nil)
			tt.mark(node)
			d := newDelegatedEvaluation(node, searchEntry(svc), ir.Binding{"token": ir.NewString("graph")}, testEnv())

			assert.Len(t, drain(d), 1)
			require.Error(t, d.Err())
			assert.ErrorIs(t, d.Err(), cause)
			assert.True(t, IsServiceInvocationError(d.Err()))
			assert.Equal(t, StateFailed, d.State())
			assert.Equal(t, []int{1}, svc.Closes())
		})
	}
}

func TestDelegatedFailureBeforeFirstYieldIsSuppressed(t *testing.T) {
	// The only row conflicts with the inbound binding, so nothing is
	// yielded before the stream fails.
	svc := &fakeService{respond: func(context.Context, map[string]ir.Term) (service.RowStream, error) {
		return service.NewFailingStream(errors.New("reset by peer"), service.Row{"uri": iri("doc1")}), nil
	}}
	node := ownedSearch(nil)
	node.Optional = true
	in := ir.Binding{"token": ir.NewString("graph"), "uri": iri("doc9")}
	d := newDelegatedEvaluation(node, searchEntry(svc), in, testEnv())

	assert.Empty(t, drain(d))
	assert.NoError(t, d.Err())
	assert.Equal(t, StateClosed, d.State())
	assert.Equal(t, []int{1}, svc.Closes())
}

func TestDelegatedCancelledContext(t *testing.T) {
	svc := rowsService(service.Row{"uri": iri("doc1")}, service.Row{"uri": iri("doc2")})
	d := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), ir.Binding{"token": ir.NewString("graph")}, testEnv())

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, d.Next(ctx))
	cancel()

	assert.False(t, d.Next(ctx))
	assert.ErrorIs(t, d.Err(), context.Canceled)
	assert.Equal(t, []int{1}, svc.Closes())
}

func TestDelegatedQuota(t *testing.T) {
	svc := rowsService(service.Row{"uri": iri("doc1")})
	env := testEnv()
	env.quota = NewInvocationQuota(1)
	in := ir.Binding{"token": ir.NewString("graph")}

	first := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), in, env)
	assert.Len(t, drain(first), 1)

	second := newDelegatedEvaluation(ownedSearch(nil), searchEntry(svc), in, env)
	assert.Empty(t, drain(second))
	assert.True(t, IsQuotaError(second.Err()))
	assert.Equal(t, 1, svc.Calls())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "BoundnessChecked", StateBoundnessChecked.String())
	assert.Equal(t, "Unknown", State(42).String())
}
