package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProposalsGenerated counts planning runs by policy and outcome.
	ProposalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_proposals_total",
		Help: "Schedule proposals computed, by policy and outcome",
	}, []string{"policy", "outcome"}) // outcome: ok, error

	// ProposalDecisions counts operator verdicts on proposals.
	ProposalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_proposal_decisions_total",
		Help: "Operator decisions on schedule proposals",
	}, []string{"decision"}) // approve, reject, revise

	// ProposalDuration tracks the wall time of one full planning run,
	// including all gateway writes.
	ProposalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lineplan_proposal_duration_seconds",
		Help:    "Duration of a full compute-proposal pipeline run",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
	})

	// ScheduledOrders gauges the size of the current schedule.
	ScheduledOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lineplan_scheduled_orders",
		Help: "Orders in the current schedule, split by deadline health",
	}, []string{"health"}) // on_time, late

	// WorstSlackMinutes gauges the tightest order in the current schedule.
	WorstSlackMinutes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lineplan_worst_slack_minutes",
		Help: "Minimum slack across the current schedule (negative = late)",
	})

	// GatewayRequests counts outbound manufacturing-API calls.
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_gateway_requests_total",
		Help: "Manufacturing API requests, by operation and result",
	}, []string{"operation", "result"}) // result: ok, transient, permanent, auth_expired

	// GatewayRetries counts transient-error retries against the gateway.
	GatewayRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineplan_gateway_retries_total",
		Help: "Retry attempts against the manufacturing API",
	})

	// GatewayLatency tracks manufacturing-API roundtrip latency.
	GatewayLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lineplan_gateway_latency_seconds",
		Help:    "Manufacturing API call latency",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// FactoryEvents counts inbound failure events by resolution result.
	FactoryEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_factory_events_total",
		Help: "Factory failure events received, by resolution result",
	}, []string{"result"}) // accepted, unresolved, replayed, rate_limited, malformed

	// AdvisorCalls counts AI advisor invocations by outcome.
	AdvisorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_advisor_calls_total",
		Help: "AI advisor invocations, by outcome",
	}, []string{"outcome"}) // ok, timeout, error, fallback

	// StoreLatency tracks state-store operation roundtrip latency.
	StoreLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lineplan_store_latency_seconds",
		Help:    "State store operation latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
	})

	// StreamClients gauges connected schedule-stream websocket clients.
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lineplan_stream_clients",
		Help: "Currently connected schedule stream clients",
	})

	// OperatorNotifications counts pushes to the operator channel.
	OperatorNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lineplan_operator_notifications_total",
		Help: "Messages pushed to the operator channel, by kind and result",
	}, []string{"kind", "result"}) // kind: telegram, email
)
