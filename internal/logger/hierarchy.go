// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// hierarchy keeps one hclog logger per absolute dotted name. A logger without an
// explicit level follows its nearest ancestor that has one, and ultimately the root.
type hierarchy struct {
	lock sync.Mutex

	root     hclog.InterceptLogger
	rootNode *node
	nodes    map[string]*node
	nextSwap uint64
}

// node is the level setting of a single logger. Swapped levels stack on top of the
// configured one; the most recent swap still active wins, whatever order they end in.
type node struct {
	log      hclog.InterceptLogger
	level    Level
	explicit bool
	swaps    []swap
}

type swap struct {
	id    uint64
	level Level
}

func (n *node) setting() (Level, bool) {
	if len(n.swaps) > 0 {
		return n.swaps[len(n.swaps)-1].level, true
	}
	return n.level, n.explicit
}

func newHierarchy(root hclog.InterceptLogger, level Level) *hierarchy {
	return &hierarchy{
		root:     root,
		rootNode: &node{log: root, level: level, explicit: true},
		nodes:    make(map[string]*node),
	}
}

// named returns the logger registered under name, creating it on first use.
func (h *hierarchy) named(name string) hclog.InterceptLogger {
	h.lock.Lock()
	defer h.lock.Unlock()

	if n, ok := h.nodes[name]; ok {
		return n.log
	}

	n := &node{log: h.root.ResetNamedIntercept(name)}
	n.log.SetLevel(h.resolve(name).convertedLevel())
	h.nodes[name] = n
	return n.log
}

func (h *hierarchy) effectiveLevel(name string) Level {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.resolve(name)
}

// setLevel changes the configured level of name. Active swaps keep precedence.
func (h *hierarchy) setLevel(name string, level Level) {
	h.lock.Lock()
	defer h.lock.Unlock()

	n := h.node(name)
	n.level = level
	n.explicit = true
	h.refresh()
}

// swapLevel stacks an explicit level on name and returns the id releasing it.
func (h *hierarchy) swapLevel(name string, level Level) uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.nextSwap++
	n := h.node(name)
	n.swaps = append(n.swaps, swap{id: h.nextSwap, level: level})
	h.refresh()
	return h.nextSwap
}

// release drops the swap id from name. Releasing an unknown id is a no-op.
func (h *hierarchy) release(name string, id uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	n := h.node(name)
	index := slices.IndexFunc(n.swaps, func(s swap) bool { return s.id == id })
	if index < 0 {
		return
	}
	n.swaps = slices.Delete(n.swaps, index, index+1)
	h.refresh()
}

// node must be called with the lock held, on a name already registered.
func (h *hierarchy) node(name string) *node {
	if name == "" {
		return h.rootNode
	}
	return h.nodes[name]
}

// refresh must be called with the lock held.
func (h *hierarchy) refresh() {
	h.root.SetLevel(h.resolve("").convertedLevel())
	for nodeName, n := range h.nodes {
		n.log.SetLevel(h.resolve(nodeName).convertedLevel())
	}
}

// resolve must be called with the lock held.
func (h *hierarchy) resolve(name string) Level {
	for current := name; current != ""; current = parentName(current) {
		if n, ok := h.nodes[current]; ok {
			if level, explicit := n.setting(); explicit {
				return level
			}
		}
	}

	level, _ := h.rootNode.setting()
	return level
}

func parentName(name string) string {
	index := strings.LastIndex(name, ".")
	if index < 0 {
		return ""
	}
	return name[:index]
}
