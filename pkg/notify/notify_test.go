package notify

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func report(ok bool) *Report {
	start := time.Date(2019, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &Report{
		RunID:      "run-1",
		Name:       "grantsync",
		Deployment: "default",
		Mode:       engine.ModeGrant,
		Action:     "load",
		Succeeded:  ok,
		Summary:    engine.NoRecordsReport,
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
	}
	if !ok {
		r.Error = "store unavailable"
	}
	return r
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "grantsync grant load succeeded", report(true).Subject())
	assert.Equal(t, "grantsync grant load failed", report(false).Subject())
}

func TestNew(t *testing.T) {
	n, err := New(config.NotifyConfig{Type: config.NotifyNone})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)

	n, err = New(config.NotifyConfig{Type: config.NotifyLog})
	require.NoError(t, err)
	assert.IsType(t, &Log{}, n)

	_, err = New(config.NotifyConfig{Type: "email"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLog(zap.New(core))
	ctx := testutil.TestContext(t)

	require.NoError(t, n.Notify(ctx, report(true)))
	require.NoError(t, n.Notify(ctx, report(false)))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "grantsync grant load succeeded", entries[0].Message)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "store unavailable", entries[1].ContextMap()["error"])
}

func TestKafkaNotifier(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	var sent []byte
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		sent = val
		return nil
	})

	n := NewKafkaWithProducer(producer, "grantsync.reports")
	r := report(true)
	r.Statistics = &engine.Statistics{Mode: engine.ModeGrant, GrantsCreated: 2}
	require.NoError(t, n.Notify(testutil.TestContext(t), r))
	require.NoError(t, n.Close())

	var decoded Report
	require.NoError(t, json.Unmarshal(sent, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.True(t, decoded.Succeeded)
	require.NotNil(t, decoded.Statistics)
	assert.Equal(t, 2, decoded.Statistics.GrantsCreated)
}

func TestKafkaNotifierFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaWithProducer(producer, "grantsync.reports")
	err := n.Notify(testutil.TestContext(t), report(false))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	require.NoError(t, n.Close())
}

func TestProducerConfig(t *testing.T) {
	sc := ProducerConfig(config.KafkaConfig{ClientID: "grantsync", RequiredAcks: "local", Timeout: 5 * time.Second})
	assert.Equal(t, "grantsync", sc.ClientID)
	assert.Equal(t, sarama.WaitForLocal, sc.Producer.RequiredAcks)
	assert.Equal(t, 5*time.Second, sc.Producer.Timeout)
	assert.True(t, sc.Producer.Return.Successes)

	assert.Equal(t, sarama.WaitForAll, ProducerConfig(config.KafkaConfig{}).Producer.RequiredAcks)
}
