package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/testutil"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherPublishesSavedAndPurged(t *testing.T) {
	broker := testutil.NewRecordingBroker()
	registry := hooks.NewRegistry()
	NewEventPublisher(broker, "", logger.NewNopLogger()).Register(registry)

	ctx := context.Background()
	registry.Saved.Do(ctx, models.IdentifiersEvent{ProductID: 42, GTIN: "12345670", Changed: []string{models.MetaKeyGTIN}})
	registry.Purged.Do(ctx, models.UninstallReport{GTINDeleted: 3, Manual: true})

	msgs := broker.Messages()
	require.Len(t, msgs, 2)

	assert.Equal(t, TopicProductIdentifiers, msgs[0].Topic)
	assert.Equal(t, "42", msgs[0].Key)
	env, err := DecodeEnvelope(&msgs[0])
	require.NoError(t, err)
	assert.Equal(t, IdentifiersUpdatedEvent, env.Type)
	assert.Equal(t, int64(42), env.ProductID)
	assert.NotEmpty(t, env.ID)

	var saved models.IdentifiersEvent
	require.NoError(t, json.Unmarshal(env.Payload, &saved))
	assert.Equal(t, "12345670", saved.GTIN)

	assert.Equal(t, IdentifiersPurgedEvent, msgs[1].Key)
	env, err = DecodeEnvelope(&msgs[1])
	require.NoError(t, err)
	var report models.UninstallReport
	require.NoError(t, json.Unmarshal(env.Payload, &report))
	assert.Equal(t, int64(3), report.GTINDeleted)
}

func TestPublisherSwallowsBrokerErrors(t *testing.T) {
	broker := testutil.NewRecordingBroker()
	broker.Err = errors.New("broker down")
	p := NewEventPublisher(broker, "custom", logger.NewNopLogger())

	assert.NotPanics(t, func() {
		p.OnSaved(context.Background(), models.IdentifiersEvent{ProductID: 1})
	})
	assert.Empty(t, broker.Messages())
}

func TestDecodeEnvelopeRejectsUntyped(t *testing.T) {
	_, err := DecodeEnvelope(&interfaces.Message{ID: "m1", Value: []byte(`{"product_id":1}`)})
	assert.ErrorContains(t, err, "no type")

	_, err = DecodeEnvelope(&interfaces.Message{ID: "m2", Value: []byte(`not json`)})
	assert.Error(t, err)
}
