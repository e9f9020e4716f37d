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
	"github.com/kadirpekel/crewlink/pkg/report"
)

// CleanupCmd removes generated outputs.
type CleanupCmd struct {
	All bool `help:"Remove every file in the output directories, not only generated types."`
}

func (c *CleanupCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	outputs := report.Collector{
		FilesDir:  cfg.Research.FilesDir,
		ImagesDir: cfg.Research.ImagesDir,
		Log:       logger.GetLogger(),
	}

	var removed report.Removed
	if c.All {
		removed = outputs.Clear()
	} else {
		removed = outputs.Cleanup()
	}

	fmt.Println(row("Files", fmt.Sprintf("%d removed from %s", removed.Files, cfg.Research.FilesDir)))
	fmt.Println(row("Images", fmt.Sprintf("%d removed from %s", removed.Images, cfg.Research.ImagesDir)))
	for _, e := range removed.Errors {
		fmt.Println(errorStyle.Render("  " + e))
	}
	if len(removed.Errors) > 0 {
		return fmt.Errorf("%d files could not be removed", len(removed.Errors))
	}
	return nil
}
