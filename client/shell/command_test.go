package shell

import (
	"context"
	"testing"
)

func TestParseRecord(t *testing.T) {
	rec, err := parseRecord(`msg="hello world" sev=error size=10 ratio=0.5 ok=true none=null`)
	if err != nil {
		t.Fatal("unexpected err=", err)
	}

	keys := rec.Keys()
	expected := []string{"msg", "sev", "size", "ratio", "ok", "none"}
	if len(keys) != len(expected) {
		t.Fatal("expecting keys ", expected, ", but got ", keys)
	}
	for i, k := range expected {
		if keys[i] != k {
			t.Fatal("expecting keys ", expected, ", but got ", keys)
		}
	}

	if rec.At(0) != "hello world" || rec.At(1) != "error" {
		t.Fatal("the string fields are parsed wrongly: ", rec)
	}
	if rec.At(2) != int64(10) || rec.At(3) != float64(0.5) {
		t.Fatal("the number fields are parsed wrongly: ", rec)
	}
	if rec.At(4) != true || rec.At(5) != nil {
		t.Fatal("the bool and null fields are parsed wrongly: ", rec)
	}
}

func TestParseRecordErrors(t *testing.T) {
	if _, err := parseRecord("a=1 a=2"); err == nil {
		t.Fatal("expecting an error for the duplicated field, but got nil")
	}
	if _, err := parseRecord("   "); err == nil {
		t.Fatal("expecting an error for the empty record, but got nil")
	}
}

func TestCommandVars(t *testing.T) {
	vars := getInputVars(cmdByName(t, cmdWriteName).matcher, `write logs msg="a b" sev=info`)
	if vars[rgSourceGrp] != "logs" || vars[rgRecGrp] != `msg="a b" sev=info` {
		t.Fatal("the write command vars are parsed wrongly: ", vars)
	}

	vars = getInputVars(cmdByName(t, cmdSelectName).matcher, "select from logs limit 1")
	if vars[cmdSelectName] != "select from logs limit 1" {
		t.Fatal("the select command vars are parsed wrongly: ", vars)
	}

	vars = getInputVars(cmdByName(t, cmdPosName).matcher, "pos")
	if vars[rgPosArgsGrp] != "" {
		t.Fatal("the pos command vars are parsed wrongly: ", vars)
	}
	vars = getInputVars(cmdByName(t, cmdPosName).matcher, "pos reset")
	if vars[rgPosArgsGrp] != "reset" {
		t.Fatal("the pos command vars are parsed wrongly: ", vars)
	}
}

func TestExecCmdErrors(t *testing.T) {
	cfg := &config{}
	if err := execCmd(context.Background(), "write", cfg); err == nil {
		t.Fatal("expecting the invalid syntax error, but got nil")
	}
	if err := execCmd(context.Background(), "nosuch", cfg); err == nil {
		t.Fatal("expecting the unknown command error, but got nil")
	}
}

func TestSetopt(t *testing.T) {
	cfg := &config{}
	if err := execCmd(context.Background(), "setopt resume on", cfg); err != nil || !cfg.resume {
		t.Fatal("the resume option must be turned on, err=", err)
	}
	if err := execCmd(context.Background(), "setopt resume off", cfg); err != nil || cfg.resume {
		t.Fatal("the resume option must be turned off, err=", err)
	}
	if err := execCmd(context.Background(), "setopt resume maybe", cfg); err == nil {
		t.Fatal("expecting an error for the unknown value, but got nil")
	}
	if err := execCmd(context.Background(), "setopt nosuch on", cfg); err == nil {
		t.Fatal("expecting an error for the unknown option, but got nil")
	}
}

func cmdByName(t *testing.T, name string) command {
	for _, c := range commands {
		if c.name == name {
			return c
		}
	}
	t.Fatal("no such command ", name)
	return command{}
}
