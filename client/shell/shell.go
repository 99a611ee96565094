// Copyright 2019-2020 The logrange Authors
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

// Package shell contains the interactive rdb console. It turns the user input
// into driver calls - queries are run via a cursor and printed record by
// record, the read positions are saved into the positions store, so an
// interrupted query could be resumed later.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/logrange/rdb"
	"github.com/logrange/rdb/pkg/posstore"
	"github.com/logrange/rdb/pkg/utils"
	"github.com/peterh/liner"
)

type (
	shell struct {
		drv   *rdb.Driver
		poss  *posstore.Store
		hfile string
	}
)

const (
	shellHistoryFileName = ".rdb_history"
)

// Query executes the provided commands one by one and returns. It is used for
// the one-shot (non-interactive) mode, so the errors are printed, not returned.
func Query(ctx context.Context, query []string, drv *rdb.Driver) error {
	cfg := &config{drv: drv}
	for _, q := range query {
		if err := execCmd(ctx, q, cfg); err != nil {
			printError(err)
		}
	}
	return nil
}

// Run starts the interactive console over the connected driver. poss could be
// nil, which turns the positions persistence off.
func Run(drv *rdb.Driver, poss *posstore.Store) error {
	printLogo()
	newShell(drv, poss, historyFilePath()).run()
	return nil
}

func historyFilePath() string {
	var fileDir = os.TempDir()
	usr, err := user.Current()
	if err == nil {
		fileDir = usr.HomeDir
	}
	return filepath.Join(fileDir, shellHistoryFileName)
}

func printLogo() {
	fmt.Print("" +
		"          _   _     \n" +
		" _ _   __| | | |__  \n" +
		"| '_| / _` | | '_ \\ \n" +
		"|_|   \\__,_| |_.__/ \n\n")
}

func printError(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err)
}

//===================== shell =====================

func newShell(drv *rdb.Driver, poss *posstore.Store, hFile string) *shell {
	s := new(shell)
	s.drv = drv
	s.poss = poss
	s.hfile = hFile
	return s
}

func (s *shell) run() {
	lnr := liner.NewLiner()
	lnr.SetCtrlCAborts(true)

	s.loadHistory(lnr)
	beforeQuit := func() {
		s.saveHistory(lnr)
		_ = lnr.Close()
		if s.poss != nil {
			if err := s.poss.Close(); err != nil {
				printError(err)
			}
		}
		fmt.Println("bye!")
	}

	defer beforeQuit()
	cfg := &config{ //should be shared to allow setopts
		drv:        s.drv,
		poss:       s.poss,
		beforeQuit: beforeQuit,
	}

	for {
		inp, err := lnr.Prompt("rdb>")
		if err != nil {
			printError(err)
			if err == io.EOF || err == liner.ErrPromptAborted {
				break
			}
		}

		inp = strings.TrimSpace(inp)
		if inp == "" {
			continue
		}

		lnr.AppendHistory(inp)
		ctx, cancel := context.WithCancel(context.Background())
		utils.NewNotifierOnIntTermSignal(func(s os.Signal) {
			cancel()
		})

		err = execCmd(ctx, inp, cfg)
		if err != nil {
			printError(err)
		}
		cancel()
	}
}

func (s *shell) loadHistory(lnr *liner.State) {
	f, err := os.OpenFile(s.hfile, os.O_RDONLY|os.O_CREATE, 0640)
	if err != nil {
		printError(err)
		return
	}
	_, err = lnr.ReadHistory(f)
	if err != nil {
		printError(err)
		return
	}
	_ = f.Close()
}

func (s *shell) saveHistory(lnr *liner.State) {
	f, err := os.OpenFile(s.hfile, os.O_WRONLY|os.O_CREATE, 0640)
	if err != nil {
		printError(err)
		return
	}
	_, err = lnr.WriteHistory(f)
	if err != nil {
		printError(err)
		return
	}
	_ = f.Close()
}
