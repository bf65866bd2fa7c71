package eventbus

import (
	"fmt"
	"strings"

	"github.com/rezkym/fx-exchange/pkg/domain/events"
)

// streamNameFor maps "Rate.TickApplied" under prefix "fx:events" to
// "fx:events:rate:tickapplied".
func streamNameFor(prefix string, eventType events.EventType) string {
	return nameFor(prefix, ":", eventType)
}

// dlqStreamName returns the dead letter stream of an event type.
func dlqStreamName(prefix string, eventType events.EventType) string {
	return nameFor(prefix+":dlq", ":", eventType)
}

// topicNameFor is the Kafka flavour of streamNameFor, dot separated.
func topicNameFor(prefix string, eventType events.EventType) string {
	return nameFor(strings.ReplaceAll(prefix, ":", "."), ".", eventType)
}

func dlqTopicNameFor(prefix string, eventType events.EventType) string {
	return nameFor(strings.ReplaceAll(prefix, ":", ".")+".dlq", ".", eventType)
}

func nameFor(prefix, sep string, eventType events.EventType) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "fx" + sep + "events"
	}
	parts := strings.Split(string(eventType), ".")
	if len(parts) == 2 {
		return fmt.Sprintf("%s%s%s%s%s",
			prefix, sep,
			strings.ToLower(parts[0]), sep,
			strings.ToLower(parts[1]))
	}
	return fmt.Sprintf("%s%s%s", prefix, sep, strings.ToLower(string(eventType)))
}

func cleanBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		for _, p := range strings.Split(b, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
