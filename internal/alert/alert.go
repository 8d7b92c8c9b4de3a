// Package alert is the Alert Engine (C7): a single goroutine that
// matches observations against configured rules, clusters matches per
// rule/camera, enforces cool-downs, and hands firing alerts to the
// Notifier Supervisor.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmattli/go-exopticon/internal/model"
)

// evictionSweepInterval bounds cluster-map memory growth, per spec.md
// §4.7's "periodically (every second) evict cluster entries older than
// cool_down_us".
const evictionSweepInterval = 1 * time.Second

// Notification is handed to the Notifier Supervisor when a rule fires.
type Notification struct {
	NotifierID   int32
	ContactGroup string
	Message      string
	Attachment   []byte
}

// Notifier is the subset of the Notifier Supervisor's API the Alert
// Engine depends on.
type Notifier interface {
	SendNotification(n Notification)
}

type clusterKey struct {
	ruleID   int32
	cameraID int32
}

type cluster struct {
	count     int32
	firstSeen time.Time
	lastFired time.Time
}

// Engine owns the rule set and cluster map; all mutation happens on
// its single goroutine via Observe, matching the single-owner
// state-machine discipline the rest of the control plane uses.
type Engine struct {
	rules    []model.AlertRule
	notifier Notifier
	log      *slog.Logger

	clusters map[clusterKey]*cluster

	obsIn    <-chan model.Observation
	setRules chan []model.AlertRule
}

// NewEngine creates an Engine with the given initial rule set. Call
// Run in its own goroutine to begin consuming obsIn.
func NewEngine(rules []model.AlertRule, obsIn <-chan model.Observation, notifier Notifier, log *slog.Logger) *Engine {
	return &Engine{
		rules:    rules,
		notifier: notifier,
		log:      log,
		clusters: make(map[clusterKey]*cluster),
		obsIn:    obsIn,
		setRules: make(chan []model.AlertRule),
	}
}

// SetRules replaces the active rule set, e.g. after an operator edits
// alert rules. Existing cluster state for rules that still exist is
// kept; clusters for removed rules age out via the normal eviction
// sweep.
func (e *Engine) SetRules(rules []model.AlertRule) { e.setRules <- rules }

// Run processes observations until ctx is cancelled or obsIn closes.
func (e *Engine) Run(ctx context.Context) {
	sweep := time.NewTicker(evictionSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rules, ok := <-e.setRules:
			if !ok {
				return
			}
			e.rules = rules
		case <-sweep.C:
			e.evict(time.Now())
		case obs, ok := <-e.obsIn:
			if !ok {
				return
			}
			e.observe(obs, time.Now())
		}
	}
}

// observe matches obs against every rule, updating clusters and firing
// notifications, per spec.md §4.7.
func (e *Engine) observe(obs model.Observation, now time.Time) {
	nowUS := now.UnixMicro()
	for _, rule := range e.rules {
		if !rule.Matches(obs) {
			continue
		}

		key := clusterKey{ruleID: rule.ID, cameraID: obs.CameraID}
		c, ok := e.clusters[key]
		if !ok {
			c = &cluster{firstSeen: now}
			e.clusters[key] = c
		}
		c.count++

		var lastFiredUS int64
		if !c.lastFired.IsZero() {
			lastFiredUS = c.lastFired.UnixMicro()
		}

		if c.count >= rule.MinClusterSize && nowUS-lastFiredUS >= rule.CoolDownUS {
			e.fire(rule, obs, now)
			c.count = 0
			c.lastFired = now
			c.firstSeen = now
		}
	}
}

func (e *Engine) fire(rule model.AlertRule, obs model.Observation, now time.Time) {
	msg := fmt.Sprintf("%s: %s matched %s/%s (score %d) on camera %d", rule.Name, rule.Tag, rule.Tag, rule.Details, obs.Score, obs.CameraID)
	e.notifier.SendNotification(Notification{
		NotifierID:   rule.NotifierID,
		ContactGroup: rule.NotificationTopic,
		Message:      msg,
	})
	e.log.Info("alert rule fired", "rule_id", rule.ID, "camera_id", obs.CameraID)
}

// evict drops cluster entries whose owning rule's cool-down has long
// since elapsed, bounding memory for rules that rarely re-fire.
func (e *Engine) evict(now time.Time) {
	coolDown := make(map[int32]int64, len(e.rules))
	for _, r := range e.rules {
		coolDown[r.ID] = r.CoolDownUS
	}

	nowUS := now.UnixMicro()
	for key, c := range e.clusters {
		cd, ok := coolDown[key.ruleID]
		if !ok {
			delete(e.clusters, key)
			continue
		}
		if nowUS-c.firstSeen.UnixMicro() >= cd {
			delete(e.clusters, key)
		}
	}
}
