package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/duet/diff"
	"github.com/yaoapp/duet/dom"
)

// ErrMismatch the replayed tree differs from the expected one
var ErrMismatch = fmt.Errorf("the replayed tree does not match the expected tree")

// readLog read an operation log, a json array of operations
func readLog(file string) ([]dom.Operation, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	ops := []dom.Operation{}
	err = jsoniter.Unmarshal(data, &ops)
	if err != nil {
		return nil, fmt.Errorf("%s %s", file, err.Error())
	}
	return ops, nil
}

// replay apply the log to a fresh replica and print the tree.
// With update, a mismatching expect file is patched to the replayed tree.
func replay(w io.Writer, file string, expect string, update bool) error {
	ops, err := readLog(file)
	if err != nil {
		return err
	}

	replica := dom.NewReplica()
	violations := replica.Apply(ops)
	printViolations(w, violations)

	tree := replica.Snapshot()
	printTree(w, tree)

	if expect == "" {
		return nil
	}

	data, err := os.ReadFile(expect)
	if err != nil {
		return err
	}

	diffs := diff.Lines(string(data), tree.String())
	if diff.Equal(diffs) {
		color.New(color.FgGreen).Fprintf(w, "%s matched\n", expect)
		return nil
	}

	fmt.Fprint(w, diff.Unified(diffs))
	if !update {
		return ErrMismatch
	}

	patch := diff.PatchString(string(data), tree.String())
	applied, err := diff.PatchApplyString(string(data), patch)
	if err != nil {
		return err
	}

	err = os.WriteFile(expect, []byte(applied), 0644)
	if err != nil {
		return err
	}
	fmt.Fprint(w, patch)
	color.New(color.FgYellow).Fprintf(w, "%s updated\n", expect)
	return nil
}

// check validate the log without keeping the result
func check(w io.Writer, file string) error {
	ops, err := readLog(file)
	if err != nil {
		return err
	}

	violations := dom.Validate(ops)
	if len(violations) == 0 {
		color.New(color.FgGreen).Fprintf(w, "%s %d operations ok\n", file, len(ops))
		return nil
	}

	printViolations(w, violations)
	return fmt.Errorf("%s %d of %d operations rejected", file, len(violations), len(ops))
}

func printViolations(w io.Writer, violations []error) {
	red := color.New(color.FgRed)
	for _, err := range violations {
		red.Fprintf(w, "%s\n", err.Error())
	}
}

func printTree(w io.Writer, tree *dom.Tree) {
	if tree == nil {
		return
	}

	tag := color.New(color.FgCyan)
	for _, line := range tree.Lines() {
		head, rest, _ := strings.Cut(line.Text, " ")
		fmt.Fprint(w, strings.Repeat("  ", line.Depth))
		tag.Fprint(w, head)
		if rest != "" {
			fmt.Fprint(w, " "+rest)
		}
		fmt.Fprintln(w)
	}
}
