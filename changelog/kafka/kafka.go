// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kafka publishes change events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/ebay/sparqld/changelog"
	"github.com/ebay/sparqld/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultTopic is used when the configuration doesn't name a topic.
const DefaultTopic = "sparqld-changes"

func init() {
	changelog.Register("kafka", func(ctx context.Context, cfg *config.ChangeLog) (changelog.Publisher, error) {
		return NewPublisher(cfg)
	})
}

// Publisher sends each event as a JSON message keyed by dataset name, so that
// the events of one dataset stay in order within a partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewPublisher connects to the configured brokers.
func NewPublisher(cfg *config.ChangeLog) (*Publisher, error) {
	kconfig := sarama.NewConfig()
	kconfig.Producer.RequiredAcks = sarama.WaitForAll
	kconfig.Producer.Retry.Max = 10
	kconfig.Producer.Return.Successes = true
	kconfig.Producer.Timeout = 10 * time.Second
	kconfig.ClientID = "sparqld"
	producer, err := sarama.NewSyncProducer(cfg.Brokers, kconfig)
	if err != nil {
		return nil, errors.Wrap(err, "unable to start kafka producer")
	}
	log.WithFields(log.Fields{
		"brokers": cfg.Brokers,
		"topic":   topicOf(cfg),
	}).Info("Publishing changes to Kafka")
	return NewPublisherWithProducer(producer, topicOf(cfg)), nil
}

// NewPublisherWithProducer returns a Publisher that sends through an existing
// producer. It takes ownership of the producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func topicOf(cfg *config.ChangeLog) string {
	if cfg.Topic != "" {
		return cfg.Topic
	}
	return DefaultTopic
}

// Publish implements changelog.Publisher.
func (p *Publisher) Publish(ctx context.Context, event changelog.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encoding change event")
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.Dataset),
		Value:     sarama.ByteEncoder(value),
		Timestamp: event.Time,
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return errors.Wrapf(err, "publishing change event to %s", p.topic)
	}
	log.WithFields(log.Fields{
		"dataset":   event.Dataset,
		"partition": partition,
		"offset":    offset,
	}).Debug("Published change event")
	return nil
}

// Close implements changelog.Publisher.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
