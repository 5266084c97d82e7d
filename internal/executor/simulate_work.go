package executor

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/makeasinger/compute-worker/internal/model"
)

const (
	burnIterations    = 10000
	simulationMessage = "Work simulation completed"
)

// simulation is the state of one simulateWork task between steps. It is only
// touched on the event loop.
type simulation struct {
	task       *Task
	handle     *Handle
	stepsDone  int
	totalSteps int
	interval   time.Duration
	duration   float64
}

func simulateWork(t *Task, data json.RawMessage) error {
	var p model.SimulateWorkPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	duration := float64(model.DefaultSimulateDuration)
	if p.Duration != nil {
		duration = *p.Duration
	}
	steps := model.DefaultSimulateSteps
	if p.Steps != nil {
		steps = *p.Steps
	}

	if err := validate.Var(steps, "min=1"); err != nil {
		return invalidArgument("steps must be at least 1")
	}
	if math.IsNaN(duration) || validate.Var(duration, "min=0,max=86400000") != nil {
		return invalidArgument("duration must be between 0 and %d milliseconds", model.MaxSimulateDuration)
	}

	sim := &simulation{
		task:       t,
		totalSteps: steps,
		duration:   duration,
		interval:   time.Duration(duration / float64(steps) * float64(time.Millisecond)),
	}

	t.detach()
	t.exec.track(sim)
	sim.handle = t.exec.every(sim.interval, sim.step)
	t.log.WithFields(logrus.Fields{
		"steps":    steps,
		"interval": sim.interval.String(),
	}).Debug("simulation scheduled")
	return nil
}

// step runs one unit of simulated work and reports whether another is due
func (s *simulation) step() bool {
	if s.task.Done() {
		return false
	}

	s.stepsDone++
	acc := burn()
	s.task.Progress(percent(s.stepsDone, s.totalSteps), model.Fields{
		"currentStep": s.stepsDone,
		"totalSteps":  s.totalSteps,
		"result":      strconv.FormatFloat(acc, 'f', 6, 64),
	})

	if s.stepsDone < s.totalSteps {
		return true
	}

	s.handle.Cancel()
	s.task.exec.untrack(s)
	s.task.Succeed(simulationMessage, model.Fields{
		"totalDuration": s.duration,
	})
	return false
}

func burn() float64 {
	acc := 0.0
	for i := 0; i < burnIterations; i++ {
		x := float64(i)
		acc += math.Sin(x) * math.Cos(x)
	}
	return acc
}
