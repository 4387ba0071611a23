package models

import (
	"fmt"

	"github.com/aukilabs/hagall-spatial/quadtree"
	"github.com/xlab/treeprint"
)

// Tree returns a printable view of the space index. Each branch is a quadtree
// node and each leaf line an entity stored in that node.
func (s *Space) Tree() treeprint.Tree {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("space %d %s", s.ID, s.index.Bounds()))
	addTreeNodes(tree, s.index)
	return tree
}

func addTreeNodes(tree treeprint.Tree, n *quadtree.Node[*Entity]) {
	for _, e := range n.Objects() {
		tree.AddNode(fmt.Sprintf("entity %d %s", e.ID, e.Hitbox()))
	}

	if n.IsLeaf() {
		return
	}

	for q := quadtree.BottomLeft; q <= quadtree.TopLeft; q++ {
		child := n.Child(q)
		addTreeNodes(tree.AddBranch(fmt.Sprintf("%s %s", q, child.Bounds())), child)
	}
}
