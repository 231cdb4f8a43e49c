// ///////////////////////////////////////////////////////////////////////////
//
// # MPTT - Nested-set tree maintenance
//
// Copyright (C) 2023 - 2026, pgEdge (https://www.pgedge.com/)
//
// This software is released under the PostgreSQL License:
// https://opensource.org/license/postgresql
//
// ///////////////////////////////////////////////////////////////////////////

package common

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pgedge/mptt/pkg/logger"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/xlab/treeprint"
)

const (
	CheckMark = "✔"
	CrossMark = "✘"
)

// ParseIDs accepts a comma separated string, a string slice or an int64
// slice. Duplicates are dropped, keeping first occurrence order.
func ParseIDs(ids any) ([]int64, error) {
	var raw []string
	switch v := ids.(type) {
	case string:
		for s := range strings.SplitSeq(v, ",") {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				raw = append(raw, trimmed)
			}
		}
	case []string:
		raw = v
	case []int64:
		for _, id := range v {
			raw = append(raw, strconv.FormatInt(id, 10))
		}
	default:
		return nil, fmt.Errorf("ids must be a string or a slice")
	}

	seen := make(map[int64]bool, len(raw))
	var out []int64
	for _, s := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid node id %q", s)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) < len(raw) {
		logger.Info("Ignoring duplicate node ids")
	}
	return out, nil
}

// SafeCut returns at most the first n runes of s, never splitting one.
func SafeCut(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := 0
	for i := range s {
		if runes == n {
			return s[:i]
		}
		runes++
	}
	return s
}

// NodeLabel renders a node as "#id [lft, rgt]" followed by the value of
// labelKey, or every attribute in key order when labelKey is empty.
func NodeLabel(n nestedset.Node, labelKey string) string {
	label := fmt.Sprintf("#%d [%d, %d]", n.ID, n.Left, n.Right)
	if labelKey != "" {
		if v, ok := n.Attrs[labelKey]; ok {
			return label + " " + SafeCut(fmt.Sprint(v), 80)
		}
		return label
	}
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		label += fmt.Sprintf(" %s=%s", k, SafeCut(fmt.Sprint(n.Attrs[k]), 40))
	}
	return label
}

// RenderTree draws nodes, which must be in pre-order as returned by
// Tree.GetTree, as an indented tree.
func RenderTree(nodes []nestedset.TreeNode, labelKey string) string {
	if len(nodes) == 0 {
		return "(empty tree)\n"
	}
	base := nodes[0].Depth
	root := treeprint.NewWithRoot(NodeLabel(nodes[0].Node, labelKey))
	branches := []treeprint.Tree{root}
	for _, n := range nodes[1:] {
		depth := n.Depth - base
		if depth < 1 || depth > len(branches) {
			// Not a well formed pre-order listing; hang it off the root.
			depth = 1
		}
		branches = branches[:depth]
		parent := branches[depth-1]
		if n.IsLeaf() {
			parent.AddNode(NodeLabel(n.Node, labelKey))
			branches = append(branches, parent)
			continue
		}
		branches = append(branches, parent.AddBranch(NodeLabel(n.Node, labelKey)))
	}
	return root.String()
}

// WriteValidationReport writes reports as JSON next to the working directory
// when any of them failed and returns the file name ("" when all passed).
func WriteValidationReport(reports map[string]nestedset.Report, table string) (string, error) {
	var failed []string
	for scope, rep := range reports {
		if !rep.Valid {
			failed = append(failed, scope)
		}
	}
	if len(failed) == 0 {
		logger.Info("%s %s IS A VALID NESTED SET", CheckMark, table)
		return "", nil
	}
	sort.Strings(failed)

	outputFileName := fmt.Sprintf("%s_validation-%s.json",
		strings.ReplaceAll(table, ".", "_"),
		time.Now().Format("20060102150405"),
	)
	jsonData, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		logger.Error("ERROR marshalling validation report to JSON: %v", err)
		return "", fmt.Errorf("failed to marshal validation report: %w", err)
	}
	if err := os.WriteFile(outputFileName, jsonData, 0644); err != nil {
		logger.Error("ERROR writing validation report to file %s: %v", outputFileName, err)
		return "", fmt.Errorf("failed to write validation report: %w", err)
	}

	logger.Warn("%s %s IS NOT A VALID NESTED SET", CrossMark, table)
	for _, scope := range failed {
		name := scope
		if name == "" {
			name = "(global)"
		}
		logger.Warn("Scope %s: %d problem(s)", name, len(reports[scope].Problems))
	}
	logger.Info("Validation report written to %s", outputFileName)
	return outputFileName, nil
}
