/*
Copyright 2024 The Streambatch Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamproj/streambatch/pkg/driver"
)

// ExitCodeHalted distinguishes a halted driver from ordinary failures,
// so a supervisor can tell "restart with same state" from "operator must
// intervene".
const ExitCodeHalted = 3

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          CLIName,
		Short:        "streambatch is a checkpointed micro-batch ETL engine for object stores",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewVersionCommand())
	return rootCmd
}

// CLIName is the name of the CLI
const CLIName = "streambatch"

// Execute runs the root command and exits with a code the supervisor can
// act on.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		if errors.Is(err, driver.ErrHalted) {
			os.Exit(ExitCodeHalted)
		}
		os.Exit(1)
	}
}
