// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"

	"github.com/kadirpekel/crewlink/pkg/logger"
	"github.com/kadirpekel/crewlink/pkg/tracker"
	"github.com/kadirpekel/crewlink/pkg/tracker/backends"
)

// DemoCmd logs a simulated training curve.
type DemoCmd struct {
	Epochs  int     `help:"Number of simulated epochs." default:"10"`
	Project string  `help:"Project name (overrides tracker.project)."`
	Name    string  `help:"Run name (generated when empty)."`
	LR      float64 `name:"learning-rate" help:"Learning rate stored in the run config." default:"0.02"`
}

func (c *DemoCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := cli.setup(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	log := logger.GetLogger()

	set, err := backends.Build(ctx, a.cfg.Tracker, log)
	if err != nil {
		return fmt.Errorf("failed to create tracking backends: %w", err)
	}
	defer set.Close(context.WithoutCancel(ctx))

	start := tracker.StartOptions{
		Entity:  a.cfg.Tracker.Entity,
		Project: firstNonEmpty(c.Project, a.cfg.Tracker.Project),
		Name:    firstNonEmpty(c.Name, a.cfg.Tracker.Name),
		Config: map[string]any{
			"learning_rate": c.LR,
			"architecture":  "CNN",
			"dataset":       "CIFAR-100",
			"epochs":        c.Epochs,
		},
	}

	var run runInfo
	err = tracker.Run(ctx, set.Backend, start, func(ctx context.Context, t *tracker.Tracker) error {
		if !t.Active() {
			return fmt.Errorf("no tracking session could be started")
		}
		run = runInfo{Name: t.RunName(), URL: t.RunURL()}
		return runDemo(ctx, t, c.Epochs)
	}, tracker.WithLogger(log))
	if err != nil {
		return err
	}

	lines := titleStyle.Render(successStyle.Render("✓")+" Demo run finished") + "\n\n" +
		row("Run", run.Name) + "\n" +
		row("Backends", fmt.Sprint(set.Names))
	if run.URL != "" {
		lines += "\n" + row("Run URL", run.URL)
	}
	fmt.Println(boxStyle.Render(lines))
	return nil
}

// Demo progress values.
const (
	demoTopic    = "Model Context Protocol"
	demoSearches = 3
	demoFiles    = 1
	demoImages   = 1
)

// runDemo logs host telemetry, a simulated training curve and a research
// progress batch to an active tracker.
func runDemo(ctx context.Context, t *tracker.Tracker, epochs int) error {
	t.LogHostTelemetry(ctx)
	t.SimulateTraining(ctx, epochs)
	if err := ctx.Err(); err != nil {
		return err
	}
	t.LogResearchProgress(ctx, demoTopic, demoSearches, demoFiles, demoImages)
	return nil
}
