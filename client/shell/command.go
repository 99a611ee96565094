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

package shell

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kr/logfmt"
	"github.com/logrange/rdb"
	"github.com/logrange/rdb/api"
	"github.com/logrange/rdb/pkg/posstore"
	"github.com/logrange/rdb/pkg/rql"
)

type (
	command struct {
		name    string
		matcher *regexp.Regexp
		cmdFn   cmdFn
		help    string
	}

	config struct {
		query      []string
		source     string
		rec        string
		optKV      string
		posArgs    string
		resume     bool
		beforeQuit func()
		drv        *rdb.Driver
		poss       *posstore.Store
	}

	cmdFn func(ctx context.Context, cfg *config) error
)

const (
	cmdSelectName = "select"
	cmdWriteName  = "write"
	cmdPosName    = "pos"
	cmdSetOptName = "setoption"
	cmdQuitName   = "quit"
	cmdHelpName   = "help"

	optResume = "resume"

	rgSourceGrp  = "source"
	rgRecGrp     = "rec"
	rgPosArgsGrp = "posArgs"
)

var commands []command

func init() {
	commands = []command{ //replace with language grammar...
		{
			name:    cmdSelectName,
			matcher: regexp.MustCompile("(?P<" + cmdSelectName + ">(?i)^(?:select$|select\\s.+$))"),
			cmdFn:   selectFn,
			help:    "run rql queries, e.g. 'select from logs limit 1'",
		},
		{
			name: cmdWriteName,
			matcher: regexp.MustCompile("(?i)^write\\s+(?P<" + rgSourceGrp + ">\\S+)\\s+(?P<" +
				rgRecGrp + ">.+)$"),
			cmdFn: writeFn,
			help:  "write a record into a source, e.g. 'write logs msg=\"hello\" sev=info'",
		},
		{
			name:    cmdPosName,
			matcher: regexp.MustCompile("(?i)^(?:pos$|pos\\s+(?P<" + rgPosArgsGrp + ">.+)$)"),
			cmdFn:   posFn,
			help:    "print the saved query positions, 'pos reset' removes them",
		},
		{
			name: cmdSetOptName,
			matcher: regexp.MustCompile("(?i)^(?:(setoption$|setopt$)|(setoption|setopt)\\s+(?P<" +
				cmdSetOptName + ">.+))"),
			cmdFn: setoptFn,
			help:  "set options, e.g. 'setopt resume on'",
		},
		{
			name:    cmdQuitName,
			matcher: regexp.MustCompile("(?i)^(?:quit|exit)$"),
			cmdFn:   quitFn,
			help:    "exit the program",
		},
		{
			name:    cmdHelpName,
			matcher: regexp.MustCompile("(?i)^help$"),
			cmdFn:   helpFn,
			help:    "show help",
		},
	}
}

func execCmd(ctx context.Context, input string, cfg *config) error {
	for _, d := range commands {
		if !d.matcher.MatchString(input) {
			if strings.HasPrefix(input, d.name) {
				return fmt.Errorf("command %s - invalid syntax", d.name)
			}
			continue
		}
		vars := getInputVars(d.matcher, input)
		if s, ok := vars[cmdSelectName]; ok {
			cfg.query = []string{s}
		}
		if src, ok := vars[rgSourceGrp]; ok {
			cfg.source = src
		}
		if r, ok := vars[rgRecGrp]; ok {
			cfg.rec = r
		}
		if pa, ok := vars[rgPosArgsGrp]; ok {
			cfg.posArgs = pa
		}
		if opt, ok := vars[cmdSetOptName]; ok {
			cfg.optKV = opt
		}
		return d.cmdFn(ctx, cfg)
	}
	return fmt.Errorf("unknown command=%v", input)
}

func getInputVars(re *regexp.Regexp, input string) map[string]string {
	match := re.FindStringSubmatch(input)
	varsMap := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i > 0 && i < len(match) {
			varsMap[name] = match[i]
		}
	}
	return varsMap
}

//===================== select =====================

func selectFn(ctx context.Context, cfg *config) error {
	for _, q := range cfg.query {
		if err := doSelect(ctx, strings.TrimSpace(q), cfg); err != nil {
			return err
		}
	}
	return nil
}

func doSelect(ctx context.Context, q string, cfg *config) error {
	query := q
	if cfg.resume && cfg.poss != nil {
		if pos := cfg.poss.Get(q); pos != "" {
			if sel, err := rql.Parse(q); err == nil && sel.Position == nil {
				rq, err := rql.WithPosition(q, pos)
				if err != nil {
					return err
				}
				fmt.Printf("resuming from the position %s\n", pos)
				query = rq
			}
		}
	}

	start := time.Now()
	cur, err := cfg.drv.Query(ctx, query)
	if err != nil {
		return err
	}
	defer cur.Close()

	total := int64(0)
	for {
		ok, err := cur.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		rec, err := cur.Record()
		if err != nil {
			return err
		}
		fmt.Println(rec.String())
		total++
	}

	sum, err := cur.Summarize(ctx)
	if err != nil {
		return err
	}

	// the position is saved under the query text the way the user typed it,
	// so the next run of the same text could be resumed
	if cfg.poss != nil {
		cfg.poss.Set(q, sum.Pos)
		if err := cfg.poss.Save(); err != nil {
			printError(err)
		}
	}

	fmt.Printf("\ntotal: %s recs, %s, exec. time %s, position %s\n\n", humanize.Comma(total),
		humanize.Bytes(sum.Bytes), time.Now().Sub(start), sum.Pos)
	return nil
}

//===================== write =====================

// fieldList collects the fields of one record in the order they are written,
// the field order matters, cause the first write settles the source keys
type fieldList struct {
	keys []string
	vals []interface{}
}

func (fl *fieldList) HandleLogfmt(key, val []byte) error {
	k := string(key)
	for _, ek := range fl.keys {
		if ek == k {
			return fmt.Errorf("duplicated field %q", k)
		}
	}
	fl.keys = append(fl.keys, k)
	fl.vals = append(fl.vals, parseValue(val))
	return nil
}

// parseValue turns the logfmt value literal into a typed field value. The
// literals null, true and false, and the numbers are typed, everything else
// is a string.
func parseValue(val []byte) interface{} {
	if val == nil {
		return nil
	}

	v := string(val)
	switch v {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}

	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func parseRecord(rec string) (*api.Record, error) {
	fl := new(fieldList)
	if err := logfmt.Unmarshal([]byte(rec), fl); err != nil {
		return nil, err
	}
	if len(fl.keys) == 0 {
		return nil, fmt.Errorf("expecting at least one field, but got %q", rec)
	}
	return api.NewRecord(fl.keys, fl.vals)
}

func writeFn(ctx context.Context, cfg *config) error {
	rec, err := parseRecord(cfg.rec)
	if err != nil {
		return err
	}

	res, err := cfg.drv.Append(ctx, cfg.source, []*api.Record{rec})
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}

	fmt.Printf("ok, %d record(s) written to %s\n", res.Accepted, cfg.source)
	return nil
}

//===================== pos =====================

func posFn(_ context.Context, cfg *config) error {
	if cfg.poss == nil {
		return fmt.Errorf("the positions store is turned off")
	}

	args := strings.TrimSpace(strings.ToLower(cfg.posArgs))
	switch args {
	case "":
		qs := cfg.poss.Queries()
		if len(qs) == 0 {
			fmt.Println("no saved positions")
			return nil
		}

		sort.Strings(qs)
		fmt.Printf("\n%-10s  %s", "POSITION", "QUERY")
		fmt.Printf("\n----------  -----")
		for _, q := range qs {
			fmt.Printf("\n%-10s  %s", cfg.poss.Get(q), q)
		}
		fmt.Print("\n\n")
	case "reset":
		for _, q := range cfg.poss.Queries() {
			cfg.poss.Set(q, "")
		}
		if err := cfg.poss.Save(); err != nil {
			return err
		}
		fmt.Println("all saved positions are removed")
	default:
		return fmt.Errorf("unknown pos command=%v", args)
	}
	return nil
}

//===================== setopt =====================

func setoptFn(_ context.Context, cfg *config) error {
	var (
		opt string
		val string
	)

	keyVal := strings.SplitN(cfg.optKV, " ", 2)
	opt = strings.TrimSpace(strings.ToLower(keyVal[0]))
	if len(keyVal) > 1 {
		val = strings.TrimSpace(strings.ToLower(keyVal[1]))
	}

	switch opt {
	case optResume:
		switch val {
		case "on":
			cfg.resume = true
		case "off":
			cfg.resume = false
		default:
			return fmt.Errorf("unknown value=%v for option=%v", val, opt)
		}
	default:
		return fmt.Errorf("unknown option=%v", opt)
	}

	fmt.Println(keyVal)
	return nil
}

//===================== quit =====================

func quitFn(_ context.Context, cfg *config) error {
	cfg.beforeQuit()
	os.Exit(0)
	return nil
}

//===================== help =====================

func helpFn(_ context.Context, _ *config) error {
	fmt.Printf("\n\t%-10s\n", "[HELP]")
	for _, c := range commands {
		fmt.Printf("\n\t%-15s %s", c.name, c.help)
	}
	fmt.Print("\n\n")
	return nil
}
