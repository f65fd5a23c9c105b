// Package queue pulls upload notifications from SQS.
package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const (
	// One message per receive keeps a slow transcode launch from holding
	// other messages past their visibility window.
	maxMessages = 1

	// Long poll window in seconds.
	waitSeconds = 20
)

// Message is one received queue message. ReceiptHandle acknowledges this
// specific delivery; it is only valid until the visibility window ends.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Consumer receives and deletes messages from one queue.
type Consumer struct {
	client   *sqs.Client
	queueURL string
}

// NewConsumer wires a consumer to a queue URL.
func NewConsumer(client *sqs.Client, queueURL string) *Consumer {
	return &Consumer{client: client, queueURL: queueURL}
}

// Receive long polls the queue and returns at most one message. An empty
// slice means the poll timed out with nothing to do.
func (c *Consumer) Receive(ctx context.Context) ([]Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return messages, nil
}

// Delete acknowledges one delivery so the queue stops redelivering it.
func (c *Consumer) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
