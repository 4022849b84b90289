package metrics

import (
	"math/big"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MiningMetrics struct {
	periodsCreated   prometheus.Counter
	currentPeriod    prometheus.Gauge
	rewardPerBlock   prometheus.Gauge
	rolloverTotal    prometheus.Counter
	contributions    *prometheus.CounterVec
	contributedValue *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	rewardPaid       *prometheus.CounterVec
	shortfalls       *prometheus.CounterVec
	shortfallValue   *prometheus.CounterVec
	stakeUpdates     prometheus.Counter
	paramUpdates     *prometheus.CounterVec
	rejected         *prometheus.CounterVec
}

var (
	miningOnce     sync.Once
	miningRegistry *MiningMetrics
)

// Mining returns the process-wide mining metrics, registering them with the
// default Prometheus registry on first use.
func Mining() *MiningMetrics {
	miningOnce.Do(func() {
		miningRegistry = NewMiningMetrics(prometheus.DefaultRegisterer)
	})
	return miningRegistry
}

// NewMiningMetrics builds the mining collectors and registers them with reg.
// A nil registerer leaves the collectors unregistered.
func NewMiningMetrics(reg prometheus.Registerer) *MiningMetrics {
	m := &MiningMetrics{
		periodsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mining_periods_created_total",
			Help: "Number of reward periods materialized.",
		}),
		currentPeriod: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mining_current_period",
			Help: "Highest materialized reward period.",
		}),
		rewardPerBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mining_reward_per_block",
			Help: "Reward emitted per block in the latest period.",
		}),
		rolloverTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mining_rollover_total",
			Help: "Cumulative reward carried forward from idle periods.",
		}),
		contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mining_contributions_total",
			Help: "Contributions recorded by target kind.",
		}, []string{"kind"}),
		contributedValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mining_contributed_value_total",
			Help: "Normalized contribution value recorded by target kind.",
		}, []string{"kind"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mining_settlements_total",
			Help: "Reward settlements by mode.",
		}, []string{"mode"}),
		rewardPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mining_reward_paid_total",
			Help: "Reward paid out by settlement mode.",
		}, []string{"mode"}),
		shortfalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mining_reward_shortfalls_total",
			Help: "Settlements capped by the available reward balance.",
		}, []string{"mode"}),
		shortfallValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mining_reward_shortfall_value_total",
			Help: "Owed reward forfeited because the reward balance was insufficient.",
		}, []string{"mode"}),
		stakeUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mining_stake_notifications_total",
			Help: "Stake notifications applied to the ledger.",
		}),
		paramUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mining_param_updates_total",
			Help: "Parameter updates by field.",
		}, []string{"field"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mining_operations_rejected_total",
			Help: "Rejected ledger operations by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.periodsCreated,
			m.currentPeriod,
			m.rewardPerBlock,
			m.rolloverTotal,
			m.contributions,
			m.contributedValue,
			m.settlements,
			m.rewardPaid,
			m.shortfalls,
			m.shortfallValue,
			m.stakeUpdates,
			m.paramUpdates,
			m.rejected,
		)
	}
	return m
}

func (m *MiningMetrics) ObservePeriodCreated(period uint64, rewardPerBlock, rollover *big.Int) {
	if m == nil {
		return
	}
	m.periodsCreated.Inc()
	m.currentPeriod.Set(float64(period))
	m.rewardPerBlock.Set(toFloat(rewardPerBlock))
	if rollover != nil && rollover.Sign() > 0 {
		m.rolloverTotal.Add(toFloat(rollover))
	}
}

func (m *MiningMetrics) ObserveContribution(kind string, amount *big.Int) {
	if m == nil {
		return
	}
	kind = label(kind)
	m.contributions.WithLabelValues(kind).Inc()
	m.contributedValue.WithLabelValues(kind).Add(toFloat(amount))
}

func (m *MiningMetrics) ObserveSettlement(mode string, paid *big.Int) {
	if m == nil {
		return
	}
	mode = label(mode)
	m.settlements.WithLabelValues(mode).Inc()
	m.rewardPaid.WithLabelValues(mode).Add(toFloat(paid))
}

func (m *MiningMetrics) ObserveShortfall(mode string, shortfall *big.Int) {
	if m == nil {
		return
	}
	mode = label(mode)
	m.shortfalls.WithLabelValues(mode).Inc()
	m.shortfallValue.WithLabelValues(mode).Add(toFloat(shortfall))
}

func (m *MiningMetrics) ObserveStakeUpdate() {
	if m == nil {
		return
	}
	m.stakeUpdates.Inc()
}

func (m *MiningMetrics) ObserveParamUpdate(field string) {
	if m == nil {
		return
	}
	m.paramUpdates.WithLabelValues(label(field)).Inc()
}

func (m *MiningMetrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(label(reason)).Inc()
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	if v.IsInt64() {
		return float64(v.Int64())
	}
	f, err := strconv.ParseFloat(v.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
