// Package render formats revisions and change items for terminal output.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/seals"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// DefaultContext is the number of context lines in patches.
const DefaultContext = 3

// Label is the one line summary of an item.
func Label(it *revision.Item) string {
	return fmt.Sprintf("%s %s [%s] %s", it.ItemKind(), it.ItemID(), it.DeltaType(), it.Delta().Description())
}

// Items lists items grouped by item id, keeping the first appearance order
// of each id.
func Items(w io.Writer, items []*revision.Item) {
	var order []string
	groups := map[string][]*revision.Item{}
	for _, it := range items {
		if _, ok := groups[it.ItemID()]; !ok {
			order = append(order, it.ItemID())
		}
		groups[it.ItemID()] = append(groups[it.ItemID()], it)
	}
	for _, id := range order {
		for _, it := range groups[id] {
			fmt.Fprintln(w, colors.ItemLine(it.ChangeType().String(), Label(it)))
		}
	}
}

// Summary counts items per change type, e.g. "2 added, 1 changed".
func Summary(items []*revision.Item) string {
	counts := map[string]int{}
	for _, it := range items {
		counts[it.ChangeType().String()]++
	}
	if len(counts) == 0 {
		return "no changes"
	}
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%d %s", counts[k], k)
	}
	return strings.Join(parts, ", ")
}

// RevisionLine formats one log entry. The head is marked with '*'.
func RevisionLine(r *revision.Revision, isHead bool) string {
	marker := " "
	if isHead {
		marker = colors.Success("*")
	}
	msg := r.Message()
	if r.IsRoot() {
		msg = colors.Dim("(root)")
	}
	author := ""
	if r.Author() != "" {
		author = " " + colors.Dim("<"+r.Author()+">")
	}
	return fmt.Sprintf("%s %s %s %s%s %s",
		marker,
		colors.Info(seals.Name(r.Hash())),
		colors.Dim(r.ID()[:8]),
		r.Timestamp().Local().Format(time.DateTime),
		author,
		msg)
}

// Log writes revisions, newest first as given, marking the head.
func Log(w io.Writer, revs []*revision.Revision, headID string) {
	for _, r := range revs {
		fmt.Fprintln(w, RevisionLine(r, r.ID() == headID))
	}
}

func xmlLines(n *serial.Node) []string {
	if !n.IsValid() {
		return nil
	}
	return difflib.SplitLines(n.ToXML() + "\n")
}

// Patch renders a unified diff between two payloads. Either side may be
// nil for additions and removals.
func Patch(name string, before, after *serial.Node) (string, error) {
	from, to := "a/"+name, "b/"+name
	if !before.IsValid() {
		from = "/dev/null"
	}
	if !after.IsValid() {
		to = "/dev/null"
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        xmlLines(before),
		B:        xmlLines(after),
		FromFile: from,
		ToFile:   to,
		Context:  DefaultContext,
	})
}

// ItemPatch renders the change an item makes. previous returns the payload
// the item replaces, or nil when unknown.
func ItemPatch(it *revision.Item, previous func(*revision.Item) *serial.Node) (string, error) {
	name := it.ItemID() + "/" + it.DeltaType()
	var before *serial.Node
	if previous != nil {
		before = previous(it)
	}
	switch it.ChangeType() {
	case revision.Added:
		return Patch(name, nil, it.Delta().Payload())
	case revision.Removed:
		if !before.IsValid() {
			before = it.Delta().Payload()
		}
		return Patch(name, before, nil)
	default:
		return Patch(name, before, it.Delta().Payload())
	}
}
