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

package rql

import (
	"path"
	"strconv"
	"strings"

	"github.com/logrange/rdb/api"
	"github.com/pkg/errors"
)

type (
	// WhereFunc is the compiled form of a WHERE expression. It receives a
	// record and reports whether the record matches the condition.
	WhereFunc func(r *api.Record) bool

	whereFuncBuilder struct {
		wf WhereFunc
	}
)

var positiveWhereFunc = func(*api.Record) bool { return true }

// BuildWhereFunc turns the parsed expression into the function over a record.
// The nil expression is allowed and always matches.
func BuildWhereFunc(exp *Expression) (WhereFunc, error) {
	if exp == nil {
		return positiveWhereFunc, nil
	}

	var wfb whereFuncBuilder
	err := wfb.buildOrConds(exp.Or)
	if err != nil {
		return nil, err
	}

	return wfb.wf, nil
}

func (wfb *whereFuncBuilder) buildOrConds(ocn []*OrCondition) error {
	if len(ocn) == 0 {
		wfb.wf = positiveWhereFunc
		return nil
	}

	err := wfb.buildXConds(ocn[0].And)
	if err != nil {
		return err
	}

	if len(ocn) == 1 {
		// no need to go ahead, everything has been built already
		return nil
	}

	wf := wfb.wf
	err = wfb.buildOrConds(ocn[1:])
	if err != nil {
		return err
	}
	wf2 := wfb.wf

	wfb.wf = func(r *api.Record) bool { return wf(r) || wf2(r) }
	return nil
}

func (wfb *whereFuncBuilder) buildXConds(cn []*XCondition) (err error) {
	if len(cn) == 0 {
		wfb.wf = positiveWhereFunc
		return nil
	}

	if len(cn) == 1 {
		return wfb.buildXCond(cn[0])
	}

	if err = wfb.buildXCond(cn[0]); err != nil {
		return err
	}

	wf := wfb.wf
	if err = wfb.buildXConds(cn[1:]); err != nil {
		return err
	}
	wf2 := wfb.wf

	wfb.wf = func(r *api.Record) bool { return wf(r) && wf2(r) }
	return nil
}

func (wfb *whereFuncBuilder) buildXCond(xc *XCondition) (err error) {
	if xc.Expr != nil {
		err = wfb.buildOrConds(xc.Expr.Or)
	} else {
		err = wfb.buildCond(xc.Cond)
	}

	if err != nil {
		return err
	}

	if xc.Not {
		wf := wfb.wf
		wfb.wf = func(r *api.Record) bool { return !wf(r) }
	}

	return nil
}

func (wfb *whereFuncBuilder) buildCond(cn *Condition) (err error) {
	fld := cn.Operand
	op := strings.ToUpper(cn.Op)

	switch op {
	case "<", ">", "<=", ">=", "!=", "=":
		wfb.wf = func(r *api.Record) bool {
			v, ok := r.Get(fld)
			if !ok {
				return false
			}
			return compareValue(v, op, cn.Value)
		}
	case CMP_CONTAINS:
		wfb.wf = func(r *api.Record) bool {
			s, ok := stringValue(r, fld)
			return ok && strings.Contains(s, cn.Value)
		}
	case CMP_HAS_PREFIX:
		wfb.wf = func(r *api.Record) bool {
			s, ok := stringValue(r, fld)
			return ok && strings.HasPrefix(s, cn.Value)
		}
	case CMP_HAS_SUFFIX:
		wfb.wf = func(r *api.Record) bool {
			s, ok := stringValue(r, fld)
			return ok && strings.HasSuffix(s, cn.Value)
		}
	case CMP_LIKE:
		// test the pattern
		_, err = path.Match(cn.Value, "abc")
		if err != nil {
			err = errors.Errorf("wrong pattern %q for LIKE operation: %s", cn.Value, err.Error())
		} else {
			wfb.wf = func(r *api.Record) bool {
				s, ok := stringValue(r, fld)
				if !ok {
					return false
				}
				res, _ := path.Match(cn.Value, s)
				return res
			}
		}
	default:
		err = errors.Errorf("unsupported operation %s for the field %s", cn.Op, fld)
	}
	return err
}

// stringValue returns the field value for the string operations. Only the
// textual values participate, the rest of the types never match.
func stringValue(r *api.Record, fld string) (string, bool) {
	v, ok := r.Get(fld)
	if !ok {
		return "", false
	}
	switch vv := v.(type) {
	case string:
		return vv, true
	case []byte:
		return string(vv), true
	}
	return "", false
}

// compareValue evaluates `v op val`, where val is the condition literal. The
// comparison is driven by the actual type of the record value, so the same
// condition may be numeric for one record and textual for another one.
func compareValue(v interface{}, op, val string) bool {
	switch vv := v.(type) {
	case nil:
		isNull := strings.EqualFold(val, "null")
		switch op {
		case "=":
			return isNull
		case "!=":
			return !isNull
		}
		return false
	case bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return op == "!="
		}
		switch op {
		case "=":
			return vv == b
		case "!=":
			return vv != b
		}
		return false
	case int64:
		if iv, err := strconv.ParseInt(val, 10, 64); err == nil {
			return cmpInt(vv, iv, op)
		}
		if fv, err := strconv.ParseFloat(val, 64); err == nil {
			return cmpFloat(float64(vv), fv, op)
		}
		return op == "!="
	case float64:
		fv, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return op == "!="
		}
		return cmpFloat(vv, fv, op)
	case string:
		return cmpStr(vv, val, op)
	case []byte:
		return cmpStr(string(vv), val, op)
	}
	return false
}

func cmpInt(v1, v2 int64, op string) bool {
	switch op {
	case "<":
		return v1 < v2
	case ">":
		return v1 > v2
	case "<=":
		return v1 <= v2
	case ">=":
		return v1 >= v2
	case "!=":
		return v1 != v2
	case "=":
		return v1 == v2
	}
	return false
}

func cmpFloat(v1, v2 float64, op string) bool {
	switch op {
	case "<":
		return v1 < v2
	case ">":
		return v1 > v2
	case "<=":
		return v1 <= v2
	case ">=":
		return v1 >= v2
	case "!=":
		return v1 != v2
	case "=":
		return v1 == v2
	}
	return false
}

func cmpStr(v1, v2, op string) bool {
	switch op {
	case "<":
		return v1 < v2
	case ">":
		return v1 > v2
	case "<=":
		return v1 <= v2
	case ">=":
		return v1 >= v2
	case "!=":
		return v1 != v2
	case "=":
		return v1 == v2
	}
	return false
}
