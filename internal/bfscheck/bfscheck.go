// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bfscheck implements the testable-property checkers spec §8
// names: predecessor uniqueness, edge validity, level consistency,
// reachability completeness. It has no separate tree-property checker.
// It is test-only support code
// (imported from _test.go files across the repo), the same role
// fixture/assertion helpers play in pileup's *_test.go files, so it lives
// under internal/.
package bfscheck

import (
	"github.com/grailbio/bfs500/graph"
	"github.com/grailbio/bfs500/wire"
	"github.com/pkg/errors"
)

// Tree is a single process's decoded view of a completed BFS: one
// predecessor entry per local vertex, plus the layout used to decode it.
type Tree struct {
	Layout wire.Layout
	Pred   []wire.PredWord
}

// PredecessorUniqueness checks that no local vertex's predecessor entry
// was written more than once -- a property enforced structurally by
// traversal.State.SetPred's panic-on-rewrite, so this check instead
// verifies the decoded predecessor of every visited vertex names a single
// consistent (level, col, row, local) tuple, i.e. decode(encode(x)) == x
// for the stored bits.
func PredecessorUniqueness(t Tree) error {
	for i, p := range t.Pred {
		if p == wire.Unvisited {
			continue
		}
		d := t.Layout.Decode(p)
		if t.Layout.Encode(d.Level, d.Col, d.Row, d.Local) != p {
			return errors.Errorf("bfscheck: vertex %d predecessor %#x does not round-trip through decode/encode", i, uint64(p))
		}
	}
	return nil
}

// LevelConsistency checks that every visited vertex's level is exactly one
// greater than its predecessor's level, except the root (level 0, which
// is its own predecessor).
func LevelConsistency(t Tree, rootLocal uint32, levelOf func(local uint32) (level int, ok bool)) error {
	for i, p := range t.Pred {
		if p == wire.Unvisited {
			continue
		}
		local := uint32(i)
		d := t.Layout.Decode(p)
		lvl, ok := levelOf(local)
		if !ok {
			continue // predecessor owned by a different process; checked there
		}
		if local == rootLocal {
			if lvl != 0 {
				return errors.Errorf("bfscheck: root %d has level %d, want 0", local, lvl)
			}
			continue
		}
		parentLvl, ok := levelOf(d.Local)
		if !ok {
			continue
		}
		if lvl != parentLvl+1 {
			return errors.Errorf("bfscheck: vertex %d at level %d has parent %d at level %d (want %d)",
				local, lvl, d.Local, parentLvl, lvl-1)
		}
	}
	return nil
}

// EdgeValidity checks that every non-root predecessor edge (parent, local)
// actually exists in g's adjacency (in either direction, since Graph500
// edges are undirected and may be stored from either endpoint).
func EdgeValidity(g *graph.Graph, t Tree, rootLocal uint32, parentOf func(local uint32) (parent uint32, hasParent bool)) error {
	for local := 0; local < g.NumLocalVerts(); local++ {
		if uint32(local) == rootLocal {
			continue
		}
		parent, ok := parentOf(uint32(local))
		if !ok {
			continue
		}
		if !hasEdge(g, parent, uint32(local)) && !hasEdge(g, uint32(local), parent) {
			return errors.Errorf("bfscheck: no edge between vertex %d and its claimed parent %d", local, parent)
		}
	}
	return nil
}

func hasEdge(g *graph.Graph, from, to uint32) bool {
	if !g.HasRow(int(from)) {
		return false
	}
	found := false
	g.IterateOutEdges(g.RowNZIndex(int(from)), func(tgt uint32) bool {
		if tgt == to {
			found = true
			return false
		}
		return true
	})
	return found
}

// ReachabilityCompleteness checks that every vertex the caller marks true
// in reachable, other than the root, ended up with a predecessor. g is not
// consulted; reachability comes entirely from the map.
func ReachabilityCompleteness(g *graph.Graph, t Tree, rootLocal uint32, reachable map[uint32]bool) error {
	for local, ok := range reachable {
		if !ok {
			continue
		}
		if local == rootLocal {
			continue
		}
		if t.Pred[local] == wire.Unvisited {
			return errors.Errorf("bfscheck: vertex %d is reachable but was never visited", local)
		}
	}
	return nil
}
