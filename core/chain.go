package core

import (
	"fmt"

	"github.com/signalsfoundry/rfcascade/model"
)

// Chain is an ordered list of stages plus the globals they are evaluated
// under. A trailing Node sink is owned by the chain and is never part of
// Stages.
type Chain struct {
	Name    string
	Globals model.Globals
	Stages  []*Stage

	sink *Stage
}

// NewChain builds a chain from its spec. The spec is copied.
func NewChain(spec model.ChainSpec) *Chain {
	spec = spec.Clone()
	c := &Chain{
		Name:    spec.Name,
		Globals: spec.Globals,
		Stages:  make([]*Stage, 0, len(spec.Stages)),
		sink:    NewStage(model.DefaultStageSpec(model.KindNode)),
	}
	for _, s := range spec.Stages {
		c.Stages = append(c.Stages, NewStage(s))
	}
	return c
}

// Spec returns the chain's declared parameters.
func (c *Chain) Spec() model.ChainSpec {
	out := model.ChainSpec{
		Name:    c.Name,
		Globals: c.Globals,
		Stages:  make([]model.StageSpec, len(c.Stages)),
	}
	for i, s := range c.Stages {
		out.Stages[i] = s.Spec
	}
	return out.Clone()
}

// Sink is the terminal Node stage that receives the final cascade.
func (c *Chain) Sink() *Stage { return c.sink }

// Len is the number of user stages.
func (c *Chain) Len() int { return len(c.Stages) }

// Add appends a stage and returns it.
func (c *Chain) Add(spec model.StageSpec) *Stage {
	s := NewStage(spec)
	c.Stages = append(c.Stages, s)
	return s
}

// Insert places a stage before index i. i == Len() appends.
func (c *Chain) Insert(i int, spec model.StageSpec) (*Stage, error) {
	if i < 0 || i > len(c.Stages) {
		return nil, c.rangeError(i)
	}
	s := NewStage(spec)
	c.Stages = append(c.Stages, nil)
	copy(c.Stages[i+1:], c.Stages[i:])
	c.Stages[i] = s
	return s, nil
}

// Remove deletes the stage at index i.
func (c *Chain) Remove(i int) error {
	if err := c.check(i); err != nil {
		return err
	}
	c.Stages = append(c.Stages[:i], c.Stages[i+1:]...)
	return nil
}

// Move relocates the stage at from so that it ends up at index to.
func (c *Chain) Move(from, to int) error {
	if err := c.check(from); err != nil {
		return err
	}
	if err := c.check(to); err != nil {
		return err
	}
	s := c.Stages[from]
	c.Stages = append(c.Stages[:from], c.Stages[from+1:]...)
	c.Stages = append(c.Stages, nil)
	copy(c.Stages[to+1:], c.Stages[to:])
	c.Stages[to] = s
	return nil
}

// SetEnabled toggles whether the stage at i takes part in evaluation.
func (c *Chain) SetEnabled(i int, enabled bool) error {
	if err := c.check(i); err != nil {
		return err
	}
	c.Stages[i].Spec.Enabled = enabled
	return nil
}

func (c *Chain) check(i int) error {
	if i < 0 || i >= len(c.Stages) {
		return c.rangeError(i)
	}
	return nil
}

func (c *Chain) rangeError(i int) error {
	return fmt.Errorf("%w: %d (chain has %d stages)", ErrIndexOutOfRange, i, len(c.Stages))
}
