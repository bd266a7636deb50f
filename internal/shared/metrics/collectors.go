package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Wager reúne os contadores do wager-service
type Wager struct {
	WagersPlaced     prometheus.Counter
	WagersCancelled  prometheus.Counter
	BetsCreated      prometheus.Counter
	BetsSettled      prometheus.Counter
	BetsCancelled    prometheus.Counter
	ParlaysPlaced    prometheus.Counter
	ParlaysCancelled prometheus.Counter
	ParlaysResolved  *prometheus.CounterVec // result
	LedgerMutations  *prometheus.CounterVec // type
	DomainErrors     *prometheus.CounterVec // kind
	PublishFailures  *prometheus.CounterVec // topic
}

func NewWager(reg prometheus.Registerer) *Wager {
	f := promauto.With(reg)
	return &Wager{
		WagersPlaced: f.NewCounter(prometheus.CounterOpts{
			Name: "wager_wagers_placed_total", Help: "Wagers placed.",
		}),
		WagersCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "wager_wagers_cancelled_total", Help: "Wagers cancelled by their owner.",
		}),
		BetsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "wager_bets_created_total", Help: "Bets created.",
		}),
		BetsSettled: f.NewCounter(prometheus.CounterOpts{
			Name: "wager_bets_settled_total", Help: "Bets settled.",
		}),
		BetsCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "wager_bets_cancelled_total", Help: "Bets cancelled.",
		}),
		ParlaysPlaced: f.NewCounter(prometheus.CounterOpts{
			Name: "wager_parlays_placed_total", Help: "Parlays placed.",
		}),
		ParlaysCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "wager_parlays_cancelled_total", Help: "Parlays cancelled by their owner.",
		}),
		ParlaysResolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_parlays_resolved_total", Help: "Parlays resolved, by result.",
		}, []string{"result"}),
		LedgerMutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_ledger_mutations_total", Help: "Committed credit transactions, by type.",
		}, []string{"type"}),
		DomainErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_domain_errors_total", Help: "Rejected operations, by error kind.",
		}, []string{"kind"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_publish_failures_total", Help: "Events that could not be published to Kafka.",
		}, []string{"topic"}),
	}
}

// Broadcaster reúne os contadores do activity-broadcaster
type Broadcaster struct {
	Consumed       *prometheus.CounterVec // topic
	ConsumeErrors  *prometheus.CounterVec // topic
	Published      prometheus.Counter
	PublishErrors  prometheus.Counter
	WSClients      prometheus.Gauge
	WSDelivered    prometheus.Counter
	WSSubscription *prometheus.CounterVec // action
}

func NewBroadcaster(reg prometheus.Registerer) *Broadcaster {
	f := promauto.With(reg)
	return &Broadcaster{
		Consumed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_events_consumed_total", Help: "Kafka events consumed, by topic.",
		}, []string{"topic"}),
		ConsumeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_consume_errors_total", Help: "Kafka read/decode errors, by topic.",
		}, []string{"topic"}),
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "broadcaster_redis_published_total", Help: "Envelopes published on redis pub/sub.",
		}),
		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "broadcaster_redis_publish_errors_total", Help: "Redis publish errors.",
		}),
		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "broadcaster_ws_clients", Help: "Connected websocket clients.",
		}),
		WSDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "broadcaster_ws_delivered_total", Help: "Messages written to websocket clients.",
		}),
		WSSubscription: f.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcaster_ws_subscriptions_total", Help: "Subscribe/unsubscribe requests.",
		}, []string{"action"}),
	}
}
