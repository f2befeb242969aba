package ingest

import (
	"context"
	"strconv"
	"testing"
	"time"

	"wisefido-vital-alert/internal/config"
	rediscommon "wisefido-vital-alert/internal/redis"
	"wisefido-vital-alert/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupStreamConsumer(t *testing.T) (sqlmock.Sqlmock, *StreamConsumer) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	vitalRepo := repository.NewVitalSignRepository(db, logger)

	cfg := &config.Config{}
	cfg.Ingest.Stream = "vital-alert:stream:vitals"
	cfg.Ingest.ConsumerGroup = "vital-alert-writers"
	cfg.Ingest.ConsumerName = "writer-1"
	cfg.Ingest.BatchSize = 10

	consumer := NewStreamConsumer(cfg, nil, vitalRepo, logger)
	return mock, consumer
}

func TestProcessMessage_Success(t *testing.T) {
	mock, consumer := setupStreamConsumer(t)

	tenantID := uuid.New().String()
	timestamp := time.Now().UnixMilli()

	mock.ExpectQuery(`INSERT INTO vital_signs`).
		WithArgs(tenantID, "patient-1", "HeartRate", 72.0, time.UnixMilli(timestamp).UTC()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	msg := rediscommon.StreamMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			"data": `{"tenant_id":"` + tenantID + `","patient_id":"patient-1","metric_type":"HeartRate","value":72,"timestamp":` +
				strconv.FormatInt(timestamp, 10) + `}`,
		},
	}

	err := consumer.processMessage(context.Background(), msg)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	snapshot := consumer.metrics.GetSnapshot()
	assert.Equal(t, int64(1), snapshot.MessagesSucceeded)
}

func TestProcessMessage_MissingDataField(t *testing.T) {
	_, consumer := setupStreamConsumer(t)

	msg := rediscommon.StreamMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"other": "value"},
	}

	err := consumer.processMessage(context.Background(), msg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing data field")

	snapshot := consumer.metrics.GetSnapshot()
	assert.Equal(t, int64(1), snapshot.ErrorsParse)
}

func TestProcessMessage_InvalidJSON(t *testing.T) {
	_, consumer := setupStreamConsumer(t)

	msg := rediscommon.StreamMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"data": "not-json"},
	}

	err := consumer.processMessage(context.Background(), msg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")

	snapshot := consumer.metrics.GetSnapshot()
	assert.Equal(t, int64(1), snapshot.ErrorsParse)
}

func TestProcessMessage_InsertFailureCounted(t *testing.T) {
	mock, consumer := setupStreamConsumer(t)

	// 缺 tenant_id 的消息在仓库层校验失败
	msg := rediscommon.StreamMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			"data": `{"patient_id":"patient-1","metric_type":"HeartRate","value":72,"timestamp":1700000000000}`,
		},
	}

	err := consumer.processMessage(context.Background(), msg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert")
	require.NoError(t, mock.ExpectationsWereMet())

	snapshot := consumer.metrics.GetSnapshot()
	assert.Equal(t, int64(1), snapshot.ErrorsInsert)
}
