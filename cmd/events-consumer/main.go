package main

import (
	"context"
	"encoding/json"
	"os"

	"bitbucket.org/harborfuel/erp_backend/config"
	"bitbucket.org/harborfuel/erp_backend/utils"
	"bitbucket.org/harborfuel/erp_backend/workflow"
	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()
	ctx := context.Background()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()

	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		config.LogError(logger, "main.go", "events-consumer", "pubsub client", nil, err)
		os.Exit(1)
	}
	topic, err := config.CreateTopicIfNotExists(client, os.Getenv("PUBSUB_TOPIC"))
	if err != nil {
		config.LogError(logger, "main.go", "events-consumer", "create topic", os.Getenv("PUBSUB_TOPIC"), err)
		os.Exit(1)
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		config.LogError(logger, "main.go", "events-consumer", "create subscription", os.Getenv("PUBSUB_SUBSCRIPTION"), err)
		os.Exit(1)
	}
	// Per-pool ordering is enforced by advisory locks in the workflow, so
	// messages for independent pools may be processed concurrently.
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		var event config.InventoryEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			config.LogError(logger, "main.go", "events-consumer", "unmarshal pubsub message", msg.Data, err)
			// Malformed message: ack/drop to avoid infinite retries.
			msg.Ack()
			return
		}
		if event.MessageId == "" {
			event.MessageId = msg.ID
		}
		correlationId := event.CorrelationId
		if correlationId == "" {
			correlationId = uuid.NewString()
		}

		ctx = utils.SetCompanyIdInContext(ctx, event.CompanyId)
		ctx = utils.SetUserIdInContext(ctx, 0)
		ctx = utils.SetUserNameInContext(ctx, "System")
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)

		if err := workflow.ProcessInventoryEvent(ctx, db, logger, event); err != nil {
			logger.WithFields(logrus.Fields{
				"company_id":     event.CompanyId,
				"kind":           event.Kind,
				"reference_id":   event.ReferenceId,
				"message_id":     event.MessageId,
				"correlation_id": correlationId,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	if err := sub.Receive(ctx, callback); err != nil {
		config.LogError(logger, "main.go", "events-consumer", "receive", nil, err)
		os.Exit(1)
	}
}
