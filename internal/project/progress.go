package project

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when an agent status change would move
// backwards or skip the running state illegally.
var ErrInvalidTransition = errors.New("invalid agent status transition")

// ErrUnknownAgent is returned when a progress index is out of range.
var ErrUnknownAgent = errors.New("unknown council agent")

func (cp *CouncilProgress) entry(i int) (*AgentProgressEntry, error) {
	if i < 0 || i >= len(cp.Agents) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownAgent, i)
	}
	return &cp.Agents[i], nil
}

func (cp *CouncilProgress) transition(i int, next AgentStatus) (*AgentProgressEntry, error) {
	e, err := cp.entry(i)
	if err != nil {
		return nil, err
	}
	if !e.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: agent %s %s -> %s", ErrInvalidTransition, e.AgentName, e.Status, next)
	}
	e.Status = next
	return e, nil
}

// MarkRunning moves agent i from pending to running.
func (cp *CouncilProgress) MarkRunning(i int, now time.Time) error {
	e, err := cp.transition(i, AgentRunning)
	if err != nil {
		return err
	}
	e.StartedAt = &now
	return nil
}

// MarkCompleted records agent i's evaluation.
func (cp *CouncilProgress) MarkCompleted(i int, eval AgentEvaluation, now time.Time) error {
	e, err := cp.transition(i, AgentCompleted)
	if err != nil {
		return err
	}
	e.CompletedAt = &now
	e.Evaluation = &eval
	e.Error = ""
	cp.recount()
	return nil
}

// MarkFailed records agent i's failure message.
func (cp *CouncilProgress) MarkFailed(i int, msg string, now time.Time) error {
	e, err := cp.transition(i, AgentFailed)
	if err != nil {
		return err
	}
	e.CompletedAt = &now
	e.Evaluation = nil
	e.Error = msg
	cp.recount()
	return nil
}

// FailUnsettled force-fails every pending or running agent with msg and
// returns the names of the agents it failed.
func (cp *CouncilProgress) FailUnsettled(msg string, now time.Time) []string {
	var failed []string
	for i := range cp.Agents {
		if cp.Agents[i].Status.IsTerminal() {
			continue
		}
		if err := cp.MarkFailed(i, msg, now); err == nil {
			failed = append(failed, cp.Agents[i].AgentName)
		}
	}
	return failed
}
