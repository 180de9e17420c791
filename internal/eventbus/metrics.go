package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activeSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "moderation_eventbus_active_subscriptions",
	Help: "Number of live query subscriptions",
}, []string{"kind"})

var relayedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_eventbus_relayed_messages",
	Help: "Number of change notifications sent or received through the relay",
}, []string{"direction"})
