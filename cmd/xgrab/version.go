package main

import (
	"flag"
	"fmt"
	"strings"
)

type versionCmd struct{ *root }

func (v *versionCmd) FlagSet() *flag.FlagSet { return nil }

func (v *versionCmd) Run() error {
	fmt.Fprintf(v.out, "xgrab version %s\n", versionString())
	return nil
}

func versionString() string {
	var extras []string
	if c := strings.TrimSpace(commit); c != "" {
		extras = append(extras, "commit "+c)
	}
	if d := strings.TrimSpace(date); d != "" {
		extras = append(extras, "built "+d)
	}
	if len(extras) == 0 {
		return version
	}
	return fmt.Sprintf("%s (%s)", version, strings.Join(extras, ", "))
}
