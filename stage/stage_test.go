package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ calls int }

func (f *failingSink) Send(context.Context, Delta) error {
	f.calls++
	return errors.New("client gone")
}

func TestChoice_StagesInOrder(t *testing.T) {
	rec := &Recorder{}
	choice := NewChoice(rec)
	ctx := context.Background()

	first := choice.OpenStage(ctx, "Coordination Request")
	first.AppendContent(ctx, "decision")
	require.NoError(t, first.Close(ctx, StatusCompleted))

	second := choice.OpenStage(ctx, "Call UMS Agent")
	second.AppendContent(ctx, "working")
	CloseSafely(ctx, second, errors.New("boom"))

	require.NoError(t, choice.AppendContent(ctx, "Hi"))

	stages := rec.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, Snapshot{Index: 0, Name: "Coordination Request", Content: "decision", Status: StatusCompleted}, stages[0])
	assert.Equal(t, Snapshot{Index: 1, Name: "Call UMS Agent", Content: "working", Status: StatusFailed}, stages[1])
	assert.Equal(t, "Hi", rec.Content())
}

func TestStage_CloseTwice(t *testing.T) {
	rec := &Recorder{}
	s := NewChoice(rec).OpenStage(context.Background(), "x")

	require.NoError(t, s.Close(context.Background(), StatusCompleted))
	assert.ErrorIs(t, s.Close(context.Background(), StatusFailed), ErrStageClosed)

	CloseSafely(context.Background(), s, nil)
	CloseSafely(context.Background(), nil, nil)

	s.AppendContent(context.Background(), "late")
	assert.Equal(t, StatusCompleted, rec.Stages()[0].Status)
	assert.Empty(t, rec.Stages()[0].Content)
}

func TestStage_ReportingFailuresAreSwallowed(t *testing.T) {
	sink := &failingSink{}
	choice := NewChoice(sink)
	ctx := context.Background()

	s := choice.OpenStage(ctx, "Coordination Request")
	s.AppendContent(ctx, "x")
	CloseSafely(ctx, s, nil)

	assert.Equal(t, 3, sink.calls)
	assert.Error(t, choice.AppendContent(ctx, "y"))
}

func TestCloseSafely_AfterCancel(t *testing.T) {
	rec := &Recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewChoice(rec).OpenStage(ctx, "x")
	cancel()

	CloseSafely(ctx, s, ctx.Err())
	assert.Equal(t, StatusFailed, rec.Stages()[0].Status)
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(2)
	ctx := context.Background()

	require.NoError(t, sink.Send(ctx, Delta{Content: "a"}))
	require.NoError(t, sink.Send(ctx, Delta{Content: "b"}))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, sink.Send(cctx, Delta{Content: "c"}), context.Canceled)

	sink.Close()
	sink.Close()

	var got []string
	for d := range sink.Updates() {
		got = append(got, d.Content)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestNewChoice_NilSink(t *testing.T) {
	choice := NewChoice(nil)
	s := choice.OpenStage(context.Background(), "x")
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, 1, choice.OpenStage(context.Background(), "y").Index())
	assert.NoError(t, choice.AppendContent(context.Background(), "z"))
}
