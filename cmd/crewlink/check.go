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
	"os/exec"

	"github.com/kadirpekel/crewlink/pkg/config"
	"github.com/kadirpekel/crewlink/pkg/utils"
)

// CheckedEnvVars are the credentials the built-in tools read.
var CheckedEnvVars = []string{"OPENAI_API_KEY", "OPENAI_ORGANIZATION", "BRAVE_API_KEY"}

type checkLevel int

const (
	checkOK checkLevel = iota
	checkWarn
	checkFail
)

type checkResult struct {
	Level   checkLevel
	Message string
}

// checker runs the setup checks. Its lookups are replaceable in tests.
type checker struct {
	envSet    func(name string) bool
	dirExists func(path string) bool
	lookPath  func(file string) (string, error)
}

func newChecker() checker {
	return checker{
		envSet:    config.EnvConfigured,
		dirExists: utils.DirExists,
		lookPath:  exec.LookPath,
	}
}

// run reports on credentials, output directories and the commands MCP
// servers need. Values of environment variables are never included.
func (c checker) run(cfg *config.Config) []checkResult {
	var results []checkResult

	for _, name := range CheckedEnvVars {
		if c.envSet(name) {
			results = append(results, checkResult{checkOK, name + " is set"})
		} else {
			results = append(results, checkResult{checkWarn, name + " needs to be configured"})
		}
	}

	for _, dir := range []string{cfg.Research.FilesDir, cfg.Research.ImagesDir} {
		if c.dirExists(dir) {
			results = append(results, checkResult{checkOK, dir + " directory exists"})
		} else {
			results = append(results, checkResult{checkWarn, dir + " directory will be created on the first run"})
		}
	}

	if _, err := c.lookPath("npx"); err == nil {
		results = append(results, checkResult{checkOK, "npx is available"})
	} else {
		results = append(results, checkResult{checkWarn, "npx is not available"})
	}

	for _, name := range cfg.MCP.Enabled() {
		cmd := cfg.MCP.Servers[name].Command
		if _, err := c.lookPath(cmd); err == nil {
			results = append(results, checkResult{checkOK, fmt.Sprintf("MCP server %s: %s found", name, cmd)})
		} else {
			results = append(results, checkResult{checkFail, fmt.Sprintf("MCP server %s: %s not found on PATH", name, cmd)})
		}
	}
	return results
}

// CheckCmd verifies the local setup.
type CheckCmd struct{}

func (c *CheckCmd) Run(cli *CLI) error {
	cfg, loader, err := loadConfig(context.Background(), cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	fmt.Println(titleStyle.Render("crewlink setup check"))
	failed := 0
	for _, r := range newChecker().run(cfg) {
		switch r.Level {
		case checkOK:
			fmt.Println(successStyle.Render("  ✓ ") + r.Message)
		case checkWarn:
			fmt.Println(warnStyle.Render("  ! ") + r.Message)
		case checkFail:
			failed++
			fmt.Println(errorStyle.Render("  ✗ ") + r.Message)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	fmt.Println(successStyle.Render("Setup looks good."))
	return nil
}
