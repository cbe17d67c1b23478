package sinks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSinkLevelsAndFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Consume(context.Background(), runEvents(uuid.New())))
	require.Equal(t, 5, logs.Len())

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	require.Equal(t, "PRECINCT_ERROR", fields["stage"])
	require.Equal(t, "protocol", fields["error_kind"])
	require.EqualValues(t, 1, fields["index"])

	fetch := logs.FilterField(zap.String("stage", "FETCH_DONE")).All()
	require.Len(t, fetch, 1)
	require.Equal(t, "2xx", fetch[0].ContextMap()["status_class"])
}

func TestLogSinkSkipsDisabledLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Consume(context.Background(), runEvents(uuid.New())))
	require.Equal(t, 1, logs.Len())
	require.NoError(t, NewLogSink(nil).Close(context.Background()))
}
