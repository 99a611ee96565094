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

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jrivets/log4g"
	"github.com/logrange/rdb"
	"github.com/logrange/rdb/api"
	"github.com/logrange/rdb/client/shell"
	"github.com/logrange/rdb/embed"
	"github.com/logrange/rdb/pkg/posstore"
	"github.com/logrange/rdb/pkg/utils"
	ucli "gopkg.in/urfave/cli.v2"
)

const (
	argCfgFile    = "config-file"
	argLogCfgFile = "log-config-file"
	argServerAddr = "server-addr"
	argUser       = "user"
	argSecret     = "secret"

	argShellPosFile = "pos-file"

	argStartListenAddr = "listen-addr"

	posFileName = ".rdb_positions"
)

var (
	logger = log4g.GetLogger("rdb")
)

// main function is an entry point of the 'rdb' command, which groups the rdb
// client and server functionality in one executable:
//
//	start - runs the rdb server
//	shell - is an interactive console for running queries and writes
//	query - executes rql queries and prints the result to stdout
func main() {
	defer log4g.Shutdown()

	cmnFlags := []ucli.Flag{
		&ucli.StringSliceFlag{
			Name:  argServerAddr,
			Usage: "server address, may be provided several times for the fail-over",
		},
		&ucli.StringFlag{
			Name:  argCfgFile,
			Usage: "configuration file path",
		},
		&ucli.StringFlag{
			Name:  argLogCfgFile,
			Usage: "log4g configuration file path",
		},
		&ucli.StringFlag{
			Name:  argUser,
			Usage: "the user name for the server handshake",
		},
		&ucli.StringFlag{
			Name:  argSecret,
			Usage: "the user secret for the server handshake",
		},
	}

	app := &ucli.App{
		Name:    "rdb",
		Version: rdb.Version,
		Usage:   "rdb client and server",
		Commands: []*ucli.Command{
			{
				Name:      "start",
				Usage:     "Run the rdb server",
				UsageText: "rdb start [command options]",
				Action:    runServer,
				Flags: []ucli.Flag{
					&ucli.StringFlag{
						Name:  argStartListenAddr,
						Usage: "the address the server listens on",
					},
					cmnFlags[1], cmnFlags[2], cmnFlags[3], cmnFlags[4],
				},
			},
			{
				Name:      "shell",
				Usage:     "Run rql shell",
				UsageText: "rdb shell [command options]",
				Action:    runShell,
				Flags: append([]ucli.Flag{
					&ucli.StringFlag{
						Name:  argShellPosFile,
						Usage: "the file for keeping the read positions between runs, empty turns the positions off",
						Value: posFilePath(),
					},
				}, cmnFlags...),
			},
			{
				Name:      "query",
				Usage:     "Execute rql query",
				Action:    execQuery,
				ArgsUsage: "[rql query]",
				Flags:     cmnFlags,
			},
		},
	}

	sort.Sort(ucli.FlagsByName(app.Flags))
	for _, c := range app.Commands {
		sort.Sort(ucli.FlagsByName(c.Flags))
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
	}
}

func initLog(c *ucli.Context) error {
	logCfgFile := c.String(argLogCfgFile)
	if logCfgFile != "" {
		return log4g.ConfigF(logCfgFile)
	}
	return nil
}

func initCfg(c *ucli.Context) (*rdb.Config, error) {
	cfg := rdb.NewDefaultConfig()

	cfgFile := c.String(argCfgFile)
	if cfgFile != "" {
		logger.Info("Loading config from=", cfgFile)
		config, err := rdb.LoadCfgFromFile(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg.Apply(config)
	}

	return cfg, nil
}

func getCreds(c *ucli.Context) api.Creds {
	return api.Creds{User: c.String(argUser), Secret: c.String(argSecret)}
}

// connect dials the server(s) provided by the command arguments. Several
// addresses mean the first available one wins.
func connect(c *ucli.Context, cfg *rdb.Config) (*rdb.Driver, error) {
	addrs := c.StringSlice(argServerAddr)
	if len(addrs) > 1 {
		return rdb.ConnectToFirstAvailable(addrs, getCreds(c), cfg)
	}

	addr := ""
	if len(addrs) == 1 {
		addr = addrs[0]
	}
	return rdb.Connect(addr, getCreds(c), cfg)
}

func newCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	utils.NewNotifierOnIntTermSignal(func(s os.Signal) {
		logger.Warn("Handling signal=", s)
		cancel()
	})
	return ctx
}

func posFilePath() string {
	var fileDir = os.TempDir()
	usr, err := user.Current()
	if err == nil {
		fileDir = usr.HomeDir
	}
	return filepath.Join(fileDir, posFileName)
}

func runServer(c *ucli.Context) error {
	if err := initLog(c); err != nil {
		return err
	}

	cfg := embed.GetDefaultConfig()
	cfgFile := c.String(argCfgFile)
	if cfgFile != "" {
		logger.Info("Loading config from=", cfgFile)
		config, err := embed.LoadCfgFromFile(cfgFile)
		if err != nil {
			return err
		}
		cfg.Apply(config)
	}

	if la := c.String(argStartListenAddr); la != "" {
		cfg.Transport.ListenAddr = la
	}
	if usr := c.String(argUser); usr != "" {
		cfg.Auth = api.Creds{User: usr, Secret: c.String(argSecret)}
	}

	srv, err := embed.Start(cfg)
	if err != nil {
		return err
	}

	ctx := newCtx()
	fmt.Println("the rdb server is listening on", srv.Addr(), "press Ctrl+C to stop it")
	<-ctx.Done()
	srv.Shutdown()
	return nil
}

func runShell(c *ucli.Context) error {
	log4g.SetLogLevel("", log4g.FATAL)
	if err := initLog(c); err != nil {
		return err
	}

	cfg, err := initCfg(c)
	if err != nil {
		return err
	}

	if c.Args().Len() > 0 {
		return fmt.Errorf("no arguments expected, but %s", c.Args())
	}

	drv, err := connect(c, cfg)
	if err != nil {
		return err
	}
	defer drv.Close()

	var poss *posstore.Store
	if pfn := c.String(argShellPosFile); pfn != "" {
		poss, err = posstore.Open(pfn)
		if err != nil {
			return err
		}
	}

	return shell.Run(drv, poss)
}

func execQuery(c *ucli.Context) error {
	log4g.SetLogLevel("", log4g.FATAL)
	if err := initLog(c); err != nil {
		return err
	}

	cfg, err := initCfg(c)
	if err != nil {
		return err
	}

	query, err := getQuery(c)
	if err != nil {
		return err
	}

	drv, err := connect(c, cfg)
	if err != nil {
		return err
	}

	defer drv.Close()
	return shell.Query(newCtx(), query, drv)
}

func getQuery(c *ucli.Context) ([]string, error) {
	var (
		query []string
	)

	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 { //check if NOT file input
		if len(c.Args().Slice()) != 0 {
			query = append(query, strings.Join(c.Args().Slice(), " "))
			return query, nil
		}
	}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() { //for now just read it all, later pipe if needed
		t := strings.TrimSpace(scanner.Text())
		if t != "" {
			query = append(query, t)
		}
	}

	return query, scanner.Err()
}
