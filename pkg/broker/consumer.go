package broker

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message. Returning an error only logs it;
// the subscription stays alive regardless.
type Handler func(topic string, message mqtt.Message) error

// IConsumer is the consuming side of the image channel.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(h Handler)
}

// Consumer subscribes to a single topic filter and feeds messages to its
// handler until the context is cancelled.
type Consumer struct {
	client  mqtt.Client
	topic   string
	handler Handler
}

func NewConsumer(client mqtt.Client, topic string, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, handler: handler}
}

func (c *Consumer) SetHandler(h Handler) { c.handler = h }

// qosFor: image-available events ride QoS 1 so a broker restart cannot drop
// them; the pipeline dedups the redeliveries that QoS 1 allows.
func qosFor(topic string) byte {
	if strings.HasPrefix(strings.TrimSpace(topic), "drone/images") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes and blocks until ctx is done, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	token := c.client.Subscribe(c.topic, qosFor(c.topic), func(_ mqtt.Client, m mqtt.Message) {
		if c.handler == nil {
			log.Printf("broker: no handler set for topic %s", c.topic)
			return
		}
		if err := c.handler(c.topic, m); err != nil {
			log.Printf("broker: handler error on %s: %v", c.topic, err)
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("broker: subscribe %s failed: %v", c.topic, token.Error())
		return
	}
	log.Printf("broker: subscribed to %s", c.topic)

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.topic)
	unsub.Wait()
}
