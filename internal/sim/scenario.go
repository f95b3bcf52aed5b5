// Package sim plays scripted path deliveries so the device can be
// exercised end to end without a feeder attached.
package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ronald-ng/internal/coord"
	"ronald-ng/internal/navpath"
)

// Script is the YAML form of a scenario.
//
// Each step fires at its offset from the cycle start and carries either a
// literal path (fixed-point [lat, lon] pairs; an explicit empty list
// clears the display) or a generate block. Offsets must be
// non-decreasing. With loop the cycle restarts after the last step.
//
//	name: city-loop
//	loop: true
//	center: [5350000, -11350000]
//	steps:
//	  - at: 0s
//	    generate: {points: 24, radius_m: 1500}
//	  - at: 5s
//	    path:
//	      - [5339576, -11371360]
//	      - [5365757, -11327140]
type Script struct {
	Name   string  `yaml:"name"`
	Loop   bool    `yaml:"loop"`
	Center []int32 `yaml:"center,omitempty"`
	Steps  []Step  `yaml:"steps"`
}

type Step struct {
	At       time.Duration `yaml:"at"`
	Path     [][]int32     `yaml:"path,omitempty"`
	Generate *GenerateStep `yaml:"generate,omitempty"`
}

// GenerateStep builds the step's path with a Generator. Center falls back
// to the script-level center when absent.
type GenerateStep struct {
	Points  int     `yaml:"points"`
	RadiusM float64 `yaml:"radius_m"`
	Center  []int32 `yaml:"center,omitempty"`
}

// Load reads and parses a scenario script from path.
func Load(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return Parse(b)
}

// Parse decodes a scenario script, rejecting unknown fields.
func Parse(b []byte) (Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, fmt.Errorf("scenario is empty")
		}
		return Script{}, fmt.Errorf("parse scenario: %w", err)
	}
	return s, nil
}

// Scenario is the validated runtime form of a Script.
type Scenario struct {
	script   Script
	duration time.Duration
}

func NewScenario(script Script) (*Scenario, error) {
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("scenario needs at least one step")
	}
	if script.Center != nil && len(script.Center) != 2 {
		return nil, fmt.Errorf("center must be [lat, lon]")
	}

	for i := range script.Steps {
		st := &script.Steps[i]
		if st.At < 0 {
			return nil, fmt.Errorf("steps[%d]: at must be >= 0", i)
		}
		if i > 0 && st.At < script.Steps[i-1].At {
			return nil, fmt.Errorf("steps[%d]: offsets must be non-decreasing", i)
		}
		hasPath := st.Path != nil
		hasGen := st.Generate != nil
		if hasPath == hasGen {
			return nil, fmt.Errorf("steps[%d]: exactly one of path or generate is required", i)
		}
		for j, pair := range st.Path {
			if len(pair) != 2 {
				return nil, fmt.Errorf("steps[%d].path[%d]: want [lat, lon]", i, j)
			}
		}
		if hasGen {
			g := st.Generate
			if g.Points < 3 {
				return nil, fmt.Errorf("steps[%d].generate: points must be >= 3", i)
			}
			if g.RadiusM <= 0 {
				return nil, fmt.Errorf("steps[%d].generate: radius_m must be > 0", i)
			}
			if g.Center != nil && len(g.Center) != 2 {
				return nil, fmt.Errorf("steps[%d].generate: center must be [lat, lon]", i)
			}
			if len(g.Center) != 2 && len(script.Center) != 2 {
				return nil, fmt.Errorf("steps[%d].generate: no center (step or script level)", i)
			}
		}
	}

	duration := script.Steps[len(script.Steps)-1].At
	if script.Loop && duration <= 0 {
		return nil, fmt.Errorf("loop needs a step at a positive offset")
	}

	return &Scenario{script: script, duration: duration}, nil
}

func (s *Scenario) Name() string {
	if s == nil {
		return ""
	}
	return s.script.Name
}

// Duration is the offset of the last step, one full cycle.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

type Sleeper interface {
	Sleep(d time.Duration)
}

// Run fires each step at its offset, calling deliver with a freshly
// materialized path exactly as an accepted transfer would carry one. With
// loop the cycle repeats until ctx is canceled. A nil sleeper waits in
// real time; tests inject one to make timing observable.
func (s *Scenario) Run(ctx context.Context, sleeper Sleeper, deliver func(p navpath.Path) error) error {
	if s == nil {
		return fmt.Errorf("scenario is nil")
	}
	if deliver == nil {
		return fmt.Errorf("deliver is nil")
	}

	sleep := func(d time.Duration) bool {
		if d <= 0 {
			return ctx.Err() == nil
		}
		if sleeper != nil {
			sleeper.Sleep(d)
			return ctx.Err() == nil
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}

	for {
		prev := time.Duration(0)
		for i := range s.script.Steps {
			if !sleep(s.script.Steps[i].At - prev) {
				return ctx.Err()
			}
			prev = s.script.Steps[i].At
			if err := deliver(s.pathAt(i)); err != nil {
				return err
			}
		}
		if !s.script.Loop {
			return nil
		}
	}
}

// pathAt materializes step i into its own buffer; deliveries never share
// backing storage.
func (s *Scenario) pathAt(i int) navpath.Path {
	st := &s.script.Steps[i]
	if st.Generate != nil {
		g := Generator{
			Center:  s.generateCenter(st.Generate),
			RadiusM: st.Generate.RadiusM,
			Points:  st.Generate.Points,
		}
		return g.Path()
	}
	if len(st.Path) == 0 {
		return navpath.Path{}
	}
	pts := make([]coord.Point, len(st.Path))
	for j, pair := range st.Path {
		pts[j] = coord.Point{Lat: pair[0], Lon: pair[1]}
	}
	return navpath.Path{Points: pts}
}

func (s *Scenario) generateCenter(g *GenerateStep) coord.Point {
	c := g.Center
	if len(c) != 2 {
		c = s.script.Center
	}
	return coord.Point{Lat: c[0], Lon: c[1]}
}
