// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ops

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/mlnoga/lowpass/internal/img"
	"github.com/pbnjay/memory"
)

// Returned when an operation needs more working memory than the context allows
var ErrMemoryBudget = errors.New("memory budget exceeded")

// An execution context for operators
type Context struct {
	Log        io.Writer
	MemoryMB   int  // memory.TotalMemory()/1024/1024
	BudgetMB   int  // MemoryMB*7/10, upper bound for working buffers of a single operator
	MaxThreads int  `json:"maxThreads"`
	Sandboxed  bool // restrict file access to relative paths within the current directory tree
}

// Creates a new context logging to the given writer. Threads are limited to the
// logical cores reported by the CPU, capped by GOMAXPROCS
func NewContext(log io.Writer) *Context {
	memoryMB := int(memory.TotalMemory() / 1024 / 1024)
	threads := runtime.GOMAXPROCS(0)
	if cores := cpuid.CPU.LogicalCores; cores > 0 && cores < threads {
		threads = cores
	}
	return &Context{
		Log:        log,
		MemoryMB:   memoryMB,
		BudgetMB:   memoryMB * 7 / 10,
		MaxThreads: threads,
	}
}

// Returns an error if the given number of bytes exceeds the memory budget.
// A zero budget means unknown, and always passes
func (c *Context) CheckMemory(bytes int64) error {
	if c.BudgetMB <= 0 {
		return nil
	}
	if need := bytes / 1024 / 1024; need > int64(c.BudgetMB) {
		return fmt.Errorf("%w: operation needs %d MB, budget is %d MB (%d MB physical)", ErrMemoryBudget, need, c.BudgetMB, c.MemoryMB)
	}
	return nil
}

// Returns a one line summary of the execution environment
func (c *Context) String() string {
	return fmt.Sprintf("%s, %d threads, %d MB physical memory", cpuid.CPU.BrandName, c.MaxThreads, c.MemoryMB)
}

// A promise for an image. Returns a materialized image, or an error
type Promise func() (im *img.Image, err error)

// An image processing operator: takes an input promise, and produces an output promise or an error.
// Source operators take a nil input
type Operator interface {
	GetType() string
	IsActive() bool
	MakePromise(in Promise, c *Context) (out Promise, err error)
}

// Base type for operators, including type information for JSON serializing/deserializing
type OpBase struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

func (op *OpBase) GetType() string { return op.Type }
func (op *OpBase) IsActive() bool  { return op.Active }

// Factory method for subclasses of operators. For JSON serializing/deserializing
type OperatorFactory func() Operator

// Mapping from operator type strings to factory method for the type
var operatorFactories = map[string]OperatorFactory{}

// Returns the operator factory for a given type string
func GetOperatorFactory(t string) OperatorFactory {
	return operatorFactories[t]
}

// Registers a given type string for a given type of Operator, identified via an exemplar generator
func SetOperatorFactory(f OperatorFactory) {
	op := f()
	t := op.GetType()
	if GetOperatorFactory(t) != nil {
		panic(fmt.Sprintf("error: re-registering operator key %s\n", t))
	}
	operatorFactories[t] = f
}

// A unary image processing operator: applies itself to the materialized input
type OperatorUnary interface {
	Operator
	Apply(im *img.Image, c *Context) (imOut *img.Image, err error)
}

// Abstract base type for unary operators. Uses golang workaround for abstract classes
// from https://golangbyexample.com/go-abstract-class/
type OpUnaryBase struct {
	OpBase
	Apply func(im *img.Image, c *Context) (imOut *img.Image, err error) `json:"-"`
}

func (op *OpUnaryBase) MakePromise(in Promise, c *Context) (out Promise, err error) {
	if in == nil {
		return nil, fmt.Errorf("%s operator without input", op.Type)
	}
	return func() (im *img.Image, err error) {
		if im, err = in(); err != nil {
			return nil, err // materialize input promise
		}
		if !op.Active {
			return im, nil
		}
		return op.Apply(im, c) // apply unary operator
	}, nil
}

// Applies a sequence of operators to a promise
type OpSequence struct {
	OpBase
	Steps    []Operator        `json:"-"`     // the actual steps
	StepsRaw []json.RawMessage `json:"steps"` // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpSequenceDefault() }) } // register the operator for JSON decoding

func NewOpSequenceDefault() *OpSequence { return NewOpSequence() }

func NewOpSequence(steps ...Operator) *OpSequence {
	return &OpSequence{
		OpBase: OpBase{Type: "seq", Active: len(steps) > 0},
		Steps:  steps,
	}
}

// Unmarshals a sequence of polymorphic operators from JSON.
// Uses temporary op.StepsRaw inspired by https://alexkappa.medium.com/json-polymorphism-in-go-4cade1e58ed1
func (op *OpSequence) UnmarshalJSON(b []byte) error {
	type alias OpSequence
	if err := json.Unmarshal(b, (*alias)(op)); err != nil {
		return err
	}

	op.Steps = nil
	for _, raw := range op.StepsRaw {
		var step OpBase
		if err := json.Unmarshal(raw, &step); err != nil {
			return err
		}
		factory := GetOperatorFactory(step.Type)
		if factory == nil {
			return fmt.Errorf("unknown operator type '%s' in raw JSON message '%s'", step.Type, string(raw))
		}
		i := factory()
		if err := json.Unmarshal(raw, i); err != nil {
			return err
		}
		op.Steps = append(op.Steps, i)
	}
	op.StepsRaw = nil
	return nil
}

// Appends one or more operators to the existing sequence
func (op *OpSequence) Append(steps ...Operator) {
	op.Steps = append(op.Steps, steps...)
}

// Marshals a sequence with polymorphic operators to JSON.
// Uses the actual op.Steps with label "steps", and ignores op.StepsRaw
func (op *OpSequence) MarshalJSON() (bs []byte, err error) {
	buf := bytes.Buffer{}
	buf.WriteString("{\"type\":")
	inner, err := json.Marshal(op.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(inner)
	fmt.Fprintf(&buf, ",\"active\":%v,\"steps\":", op.Active)
	steps := op.Steps
	if steps == nil {
		steps = []Operator{}
	}
	inner, err = json.Marshal(steps)
	if err != nil {
		return nil, err
	}
	buf.Write(inner)
	buf.WriteRune('}')
	return buf.Bytes(), nil
}

func (op *OpSequence) MakePromise(in Promise, c *Context) (out Promise, err error) {
	out = in
	for _, step := range op.Steps {
		if out, err = step.MakePromise(out, c); err != nil {
			return nil, err
		}
	}
	if out == nil {
		return nil, fmt.Errorf("%s operator produced no image", op.Type)
	}
	return out, nil
}

// Builds the promise chain for a source operator and materializes it
func Run(op Operator, c *Context) (im *img.Image, err error) {
	p, err := op.MakePromise(nil, c)
	if err != nil {
		return nil, err
	}
	return p()
}
