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
	"errors"
	"fmt"
	"os"

	"github.com/kadirpekel/crewlink/pkg/report"
	"github.com/kadirpekel/crewlink/pkg/research"
	"github.com/kadirpekel/crewlink/pkg/tracker"
)

// ResearchCmd runs one research job inside a tracked run.
type ResearchCmd struct {
	Topic string `short:"t" help:"Research topic (default: research.topic from config)."`
	Query string `short:"q" help:"Research query (default: research.query from config)."`

	Structured bool `help:"Print only the structured output block."`
}

func (c *ResearchCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := cli.setup(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	req := research.Request{
		Topic: firstNonEmpty(c.Topic, a.cfg.Research.Topic),
		Query: firstNonEmpty(c.Query, a.cfg.Research.Query),
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w (use --topic and --query)", err)
	}

	rt, err := a.newRuntime(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	var (
		result *research.Result
		run    runInfo
	)
	err = tracker.Run(ctx, rt.Backend(), rt.StartOptions(), func(ctx context.Context, t *tracker.Tracker) error {
		run = runInfo{Name: t.RunName(), URL: t.RunURL()}
		var runErr error
		result, runErr = rt.Workflow().Run(ctx, t, req)
		return runErr
	}, rt.TrackerOptions()...)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	if !c.Structured {
		fmt.Print(renderResult(result, run))
	}
	if err := report.WriteStructured(os.Stdout, result.Output); err != nil {
		return fmt.Errorf("failed to write structured output: %w", err)
	}

	if !result.Output.Success {
		return errors.New("research report was not written")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
