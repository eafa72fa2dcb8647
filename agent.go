package linux_agent

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// Agent is the daemon loop run under systemd. While the work schedule is
// active it emits a periodic activity heartbeat with basic execution
// metrics; outside work hours and during breaks it idles and re-checks at
// the poll interval.
type Agent struct {
	config   *Config
	schedule *Schedule
	now      func() time.Time
	sleep    func(context.Context, time.Duration) bool

	started time.Time
	cycles  uint64
}

// NewAgent creates an Agent from an already validated configuration.
func NewAgent(config *Config) (*Agent, error) {
	schedule, err := ParseSchedule(config.Schedule)
	if err != nil {
		return nil, err
	}
	return &Agent{
		config:   config,
		schedule: schedule,
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// Cycles returns how many activity cycles have run.
func (a *Agent) Cycles() uint64 { return a.cycles }

// Run executes the daemon loop until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.started = a.now()
	log.Printf("Starting activity agent, schedule %s-%s",
		a.config.Schedule.Start, a.config.Schedule.End)
	poll := time.Duration(a.config.Agent.PollInterval) * time.Second
	for {
		now := a.now()
		switch {
		case !a.schedule.InWorkHours(now):
			log.Printf("Outside work hours, sleeping...")
			if !a.sleep(ctx, poll) {
				return a.shutdown()
			}
		case a.schedule.InBreak(now):
			log.Printf("Break time, sleeping...")
			if !a.sleep(ctx, poll) {
				return a.shutdown()
			}
		default:
			a.cycle()
			wait := a.nextInterval()
			log.Printf("Waiting %s before next action", wait)
			if !a.sleep(ctx, wait) {
				return a.shutdown()
			}
		}
	}
}

// cycle performs one activity heartbeat and records its metrics.
func (a *Agent) cycle() {
	a.cycles++
	log.Printf("Activity cycle %d (uptime %s)",
		a.cycles, a.now().Sub(a.started).Round(time.Second))
}

// nextInterval picks a randomized pause between activity cycles within the
// configured bounds.
func (a *Agent) nextInterval() time.Duration {
	min := a.config.Agent.RunIntervalMin
	max := a.config.Agent.RunIntervalMax
	return time.Duration(min+rand.Intn(max-min+1)) * time.Second
}

func (a *Agent) shutdown() error {
	log.Printf("Agent stopped after %d cycles (uptime %s)",
		a.cycles, a.now().Sub(a.started).Round(time.Second))
	return nil
}

// sleepContext waits for the given duration and reports true, or false if
// the context was cancelled first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
